package models

import "time"

type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableUnavailable TableStatus = "unavailable"
	TableOccupied    TableStatus = "occupied"
)

const (
	MinChairs = 2
	MaxChairs = 8
)

// Table holds only the manually set status. Occupancy is derived on read.
type Table struct {
	RestaurantID int64       `json:"restaurant_id"`
	Number       int         `json:"number"`
	Chairs       int         `json:"chairs"`
	BaseStatus   TableStatus `json:"base_status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type TableView struct {
	Number        int         `json:"number"`
	Chairs        int         `json:"chairs"`
	BaseStatus    TableStatus `json:"base_status"`
	DisplayStatus TableStatus `json:"display_status"`
}
