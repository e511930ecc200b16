package models

import "time"

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDelivery, OrderTypeDineIn, OrderTypeTakeaway:
		return true
	}
	return false
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusRejected  OrderStatus = "rejected"
	StatusPreparing OrderStatus = "preparing"
	StatusOnTheWay  OrderStatus = "on_the_way"
	StatusDelivered OrderStatus = "delivered"
	StatusServed    OrderStatus = "served"
	StatusPaid      OrderStatus = "paid"
	StatusReady     OrderStatus = "ready"
)

// IsTerminal reports whether no edge leaves s in any order type graph.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusPaid, StatusRejected:
		return true
	}
	return false
}

type OrderItem struct {
	DishID    int64  `json:"dish_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // minor units
	Quantity  int    `json:"quantity"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type DeliveryLocation struct {
	Address      string      `json:"address"`
	Coordinates  Coordinates `json:"coordinates"`
	Apartment    *string     `json:"apartment,omitempty"`
	Floor        *string     `json:"floor,omitempty"`
	Instructions *string     `json:"instructions,omitempty"`
}

type Order struct {
	ID               int64             `json:"id"`
	CustomerID       int64             `json:"customer_id"`
	RestaurantID     int64             `json:"restaurant_id"`
	Type             OrderType         `json:"order_type"`
	Status           OrderStatus       `json:"status"`
	Items            []OrderItem       `json:"items"`
	TableNumber      *int              `json:"table_number,omitempty"`
	DeliveryLocation *DeliveryLocation `json:"delivery_location,omitempty"`
	Total            int64             `json:"total"`
	TipAmount        int64             `json:"tip_amount"`
	FinalTotal       int64             `json:"final_total"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CreateOrder is the cart snapshot handed over by checkout.
type CreateOrder struct {
	CustomerID       int64             `json:"-"`
	RestaurantID     int64             `json:"restaurant_id"`
	Type             OrderType         `json:"order_type"`
	Items            []OrderItem       `json:"items"`
	TableNumber      *int              `json:"table_number,omitempty"`
	DeliveryLocation *DeliveryLocation `json:"delivery_location,omitempty"`
	TipAmount        int64             `json:"tip_amount"`
}

// StatusChange is one accepted edge in an order's history.
type StatusChange struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ActorRole Role        `json:"actor_role"`
	ActorID   int64       `json:"actor_id"`
	ChangedAt time.Time   `json:"changed_at"`
}

type TransitionResult struct {
	OrderID   int64       `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Table     *TableView  `json:"table,omitempty"`
}
