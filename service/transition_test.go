package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/pkg/models"
)

func TestGraphs(t *testing.T) {
	paths := map[models.OrderType][]models.OrderStatus{
		models.OrderTypeDelivery: {models.StatusPending, models.StatusAccepted, models.StatusPreparing, models.StatusOnTheWay, models.StatusDelivered},
		models.OrderTypeDineIn:   {models.StatusPending, models.StatusAccepted, models.StatusPreparing, models.StatusServed, models.StatusPaid},
		models.OrderTypeTakeaway: {models.StatusPending, models.StatusAccepted, models.StatusPreparing, models.StatusReady, models.StatusDelivered},
	}
	for typ, path := range paths {
		for i := 0; i+1 < len(path); i++ {
			assert.True(t, HasEdge(typ, path[i], path[i+1]), "%s: %s -> %s", typ, path[i], path[i+1])
			assert.False(t, HasEdge(typ, path[i+1], path[i]), "%s: backward %s -> %s", typ, path[i+1], path[i])
		}
		for i := 0; i+2 < len(path); i++ {
			assert.False(t, HasEdge(typ, path[i], path[i+2]), "%s: skip %s -> %s", typ, path[i], path[i+2])
		}
		assert.True(t, HasEdge(typ, models.StatusPending, models.StatusRejected))
		assert.True(t, HasEdge(typ, models.StatusAccepted, models.StatusRejected))
		assert.False(t, HasEdge(typ, models.StatusPreparing, models.StatusRejected))

		last := path[len(path)-1]
		assert.Empty(t, NextStatuses(typ, last), "%s terminal %s", typ, last)
		assert.Empty(t, NextStatuses(typ, models.StatusRejected))
	}

	assert.False(t, HasEdge(models.OrderTypeDelivery, models.StatusPreparing, models.StatusServed))
	assert.False(t, HasEdge(models.OrderTypeDineIn, models.StatusPreparing, models.StatusOnTheWay))
}

func TestDineInScenario(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	o := createDineIn(t, c, 5)

	advance(t, c, o.ID, owner, models.StatusAccepted, models.StatusPreparing, models.StatusServed)

	_, err := c.RequestTransition(ctx, o.ID, models.StatusPaid, owner)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	res, err := c.RequestTransition(ctx, o.ID, models.StatusPaid, waiter)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, res.Status)
	assert.False(t, res.Timestamp.IsZero())
}

func TestTransitionErrors(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T) int64
		to      models.OrderStatus
		actor   models.Actor
		wantErr error
	}{
		{
			name:    "skip a node",
			setup:   func(t *testing.T) int64 { return createDelivery(t, c).ID },
			to:      models.StatusPreparing,
			actor:   owner,
			wantErr: models.ErrInvalidTransition,
		},
		{
			name: "edge of another order type",
			setup: func(t *testing.T) int64 {
				o := createDelivery(t, c)
				advance(t, c, o.ID, owner, models.StatusAccepted, models.StatusPreparing)
				return o.ID
			},
			to:      models.StatusServed,
			actor:   owner,
			wantErr: models.ErrInvalidTransition,
		},
		{
			name:    "customer cannot accept",
			setup:   func(t *testing.T) int64 { return createTakeaway(t, c).ID },
			to:      models.StatusAccepted,
			actor:   customer,
			wantErr: models.ErrUnauthorized,
		},
		{
			name:    "owner of another restaurant",
			setup:   func(t *testing.T) int64 { return createTakeaway(t, c).ID },
			to:      models.StatusAccepted,
			actor:   otherOwner,
			wantErr: models.ErrUnauthorized,
		},
		{
			name:    "waiter cannot accept",
			setup:   func(t *testing.T) int64 { return createDineIn(t, c, 1).ID },
			to:      models.StatusAccepted,
			actor:   waiter,
			wantErr: models.ErrUnauthorized,
		},
		{
			name: "courier without session cannot deliver",
			setup: func(t *testing.T) int64 {
				o := createDelivery(t, c)
				advance(t, c, o.ID, owner, models.StatusAccepted, models.StatusPreparing, models.StatusOnTheWay)
				return o.ID
			},
			to:      models.StatusDelivered,
			actor:   courierA,
			wantErr: models.ErrUnauthorized,
		},
		{
			name: "already applied",
			setup: func(t *testing.T) int64 {
				o := createTakeaway(t, c)
				advance(t, c, o.ID, owner, models.StatusAccepted)
				return o.ID
			},
			to:      models.StatusAccepted,
			actor:   owner,
			wantErr: models.ErrStaleState,
		},
		{
			name: "reject after preparing started",
			setup: func(t *testing.T) int64 {
				o := createTakeaway(t, c)
				advance(t, c, o.ID, owner, models.StatusAccepted, models.StatusPreparing)
				return o.ID
			},
			to:      models.StatusRejected,
			actor:   owner,
			wantErr: models.ErrStaleState,
		},
		{
			name:    "unknown order",
			setup:   func(t *testing.T) int64 { return 9999 },
			to:      models.StatusAccepted,
			actor:   owner,
			wantErr: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.setup(t)
			_, err := c.RequestTransition(ctx, id, tt.to, tt.actor)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStaleStateReportsCurrentStatus(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	o := createTakeaway(t, c)
	advance(t, c, o.ID, owner, models.StatusAccepted, models.StatusPreparing)

	_, err := c.RequestTransitionFrom(context.Background(), o.ID, models.StatusPending, models.StatusAccepted, owner)
	var stale *models.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, models.StatusPreparing, stale.Current)

	_, err = c.RequestTransitionFrom(context.Background(), o.ID, models.StatusPending, models.StatusPreparing, owner)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	c, stg, _ := newTestCoordinator(t)
	ctx := context.Background()
	o := createTakeaway(t, c)

	const racers = 12
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		stale int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := c.RequestTransition(ctx, o.ID, models.StatusAccepted, owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, models.ErrStaleState):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, stale)

	history, err := stg.Order().GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOwnerAndCourierRaceOnDelivery(t *testing.T) {
	for round := 0; round < 20; round++ {
		c, _, _ := newTestCoordinator(t)
		ctx := context.Background()
		o := createDelivery(t, c)
		advance(t, c, o.ID, owner, models.StatusAccepted, models.StatusPreparing)
		_, err := c.StartSession(ctx, courierA, o.ID)
		require.NoError(t, err)
		advance(t, c, o.ID, owner, models.StatusOnTheWay)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, actor := range []models.Actor{owner, courierA} {
			wg.Add(1)
			go func(i int, actor models.Actor) {
				defer wg.Done()
				_, errs[i] = c.RequestTransition(ctx, o.ID, models.StatusDelivered, actor)
			}(i, actor)
		}
		wg.Wait()

		var wins, stale int
		for _, err := range errs {
			if err == nil {
				wins++
			} else if errors.Is(err, models.ErrStaleState) {
				stale++
			}
		}
		require.Equal(t, 1, wins, "round %d: %v", round, errs)
		require.Equal(t, 1, stale, "round %d: %v", round, errs)
	}
}

func TestTraceFollowsGraph(t *testing.T) {
	c, stg, _ := newTestCoordinator(t)
	ctx := context.Background()
	o := createDelivery(t, c)

	attempts := []struct {
		to    models.OrderStatus
		actor models.Actor
	}{
		{models.StatusDelivered, owner},
		{models.StatusAccepted, owner},
		{models.StatusAccepted, owner},
		{models.StatusOnTheWay, owner},
		{models.StatusPreparing, owner},
		{models.StatusPending, owner},
		{models.StatusOnTheWay, owner},
		{models.StatusRejected, owner},
		{models.StatusDelivered, owner},
		{models.StatusPreparing, owner},
	}
	for _, a := range attempts {
		_, _ = c.RequestTransition(ctx, o.ID, a.to, a.actor)
	}

	history, err := stg.Order().GetHistory(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	prev := models.StatusPending
	for _, h := range history {
		assert.Equal(t, prev, h.From)
		assert.True(t, HasEdge(models.OrderTypeDelivery, h.From, h.To), "%s -> %s", h.From, h.To)
		prev = h.To
	}
	assert.Equal(t, models.StatusDelivered, prev)
}
