package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/pkg/notify"
	"fulfillment/storage/memory"
)

var (
	owner      = models.Actor{Role: models.RoleRestaurantOwner, ID: 1, RestaurantID: 10}
	otherOwner = models.Actor{Role: models.RoleRestaurantOwner, ID: 11, RestaurantID: 20}
	waiter     = models.Actor{Role: models.RoleWaiter, ID: 2, RestaurantID: 10}
	customer   = models.Actor{Role: models.RoleCustomer, ID: 3}
	courierA   = models.Actor{Role: models.RoleCourier, ID: 4}
	courierB   = models.Actor{Role: models.RoleCourier, ID: 5}
)

type recordingDispatcher struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (d *recordingDispatcher) Dispatch(intents ...notify.Intent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intents...)
}

func (d *recordingDispatcher) events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, i := range d.intents {
		out = append(out, i.EventType+":"+string(i.RecipientRole))
	}
	return out
}

func newTestCoordinator(t *testing.T) (*Coordinator, *memory.Store, *recordingDispatcher) {
	t.Helper()
	stg := memory.New()
	d := &recordingDispatcher{}
	return New(stg, d, logger.NewNop()), stg, d
}

func ensureTable(t *testing.T, c *Coordinator, number int) {
	t.Helper()
	_, err := c.CreateTable(context.Background(), owner, models.Table{RestaurantID: owner.RestaurantID, Number: number, Chairs: 4})
	if err != nil && !errors.Is(err, models.ErrValidation) {
		require.NoError(t, err)
	}
}

func createDineIn(t *testing.T, c *Coordinator, table int) *models.Order {
	t.Helper()
	ensureTable(t, c, table)
	o, err := c.CreateOrder(context.Background(), customer, models.CreateOrder{
		RestaurantID: owner.RestaurantID,
		Type:         models.OrderTypeDineIn,
		Items:        []models.OrderItem{{DishID: 1, Name: "plov", UnitPrice: 1200, Quantity: 2}},
		TableNumber:  &table,
	})
	require.NoError(t, err)
	return o
}

func createDelivery(t *testing.T, c *Coordinator) *models.Order {
	t.Helper()
	o, err := c.CreateOrder(context.Background(), customer, models.CreateOrder{
		RestaurantID: owner.RestaurantID,
		Type:         models.OrderTypeDelivery,
		Items:        []models.OrderItem{{DishID: 2, Name: "pizza", UnitPrice: 2500, Quantity: 1}},
		DeliveryLocation: &models.DeliveryLocation{
			Address:     "1 Main St",
			Coordinates: models.Coordinates{Lat: 41.3, Lng: 69.2},
		},
		TipAmount: 300,
	})
	require.NoError(t, err)
	return o
}

func createTakeaway(t *testing.T, c *Coordinator) *models.Order {
	t.Helper()
	o, err := c.CreateOrder(context.Background(), customer, models.CreateOrder{
		RestaurantID: owner.RestaurantID,
		Type:         models.OrderTypeTakeaway,
		Items:        []models.OrderItem{{DishID: 3, Name: "samsa", UnitPrice: 400, Quantity: 3}},
	})
	require.NoError(t, err)
	return o
}

func advance(t *testing.T, c *Coordinator, orderID int64, actor models.Actor, statuses ...models.OrderStatus) {
	t.Helper()
	for _, s := range statuses {
		_, err := c.RequestTransition(context.Background(), orderID, s, actor)
		require.NoError(t, err, "transition to %s", s)
	}
}
