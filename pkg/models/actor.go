package models

type Role string

const (
	RoleCustomer        Role = "customer"
	RoleRestaurantOwner Role = "restaurant_owner"
	RoleCourier         Role = "courier"
	RoleWaiter          Role = "waiter"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurantOwner, RoleCourier, RoleWaiter:
		return true
	}
	return false
}

// Actor is the caller identity supplied by authentication.
// RestaurantID is set for owners and waiters only.
type Actor struct {
	Role         Role  `json:"role"`
	ID           int64 `json:"id"`
	RestaurantID int64 `json:"restaurant_id,omitempty"`
}

// WorksAt reports whether the actor is staff of the given restaurant.
func (a Actor) WorksAt(restaurantID int64) bool {
	return (a.Role == RoleRestaurantOwner || a.Role == RoleWaiter) && a.RestaurantID == restaurantID
}
