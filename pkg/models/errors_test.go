package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaleStateErrorIs(t *testing.T) {
	err := fmt.Errorf("apply: %w", &StaleStateError{Expected: StatusOnTheWay, Current: StatusDelivered})

	assert.True(t, errors.Is(err, ErrStaleState))
	assert.False(t, errors.Is(err, ErrInvalidTransition))

	var stale *StaleStateError
	assert.True(t, errors.As(err, &stale))
	assert.Equal(t, StatusDelivered, stale.Current)
}

func TestValidationErrorIs(t *testing.T) {
	err := Invalid("items", "must not be empty")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "items")
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusDelivered, StatusPaid, StatusRejected} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []OrderStatus{StatusPending, StatusAccepted, StatusPreparing, StatusOnTheWay, StatusServed, StatusReady} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestActorWorksAt(t *testing.T) {
	assert.True(t, Actor{Role: RoleRestaurantOwner, ID: 1, RestaurantID: 7}.WorksAt(7))
	assert.True(t, Actor{Role: RoleWaiter, ID: 2, RestaurantID: 7}.WorksAt(7))
	assert.False(t, Actor{Role: RoleWaiter, ID: 2, RestaurantID: 8}.WorksAt(7))
	assert.False(t, Actor{Role: RoleCourier, ID: 3}.WorksAt(0))
}
