package service

import (
	"context"
	"errors"
	"time"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/storage"
)

type edge struct {
	from models.OrderStatus
	to   models.OrderStatus
}

// authority is the set of actors allowed to take an edge.
type authority uint8

const (
	byOwner authority = 1 << iota
	byWaiter
	bySessionCourier
)

var sharedEdges = map[edge]authority{
	{models.StatusPending, models.StatusAccepted}:   byOwner,
	{models.StatusPending, models.StatusRejected}:   byOwner,
	{models.StatusAccepted, models.StatusRejected}:  byOwner,
	{models.StatusAccepted, models.StatusPreparing}: byOwner,
}

var transitionGraphs = map[models.OrderType]map[edge]authority{
	models.OrderTypeDelivery: withShared(map[edge]authority{
		{models.StatusPreparing, models.StatusOnTheWay}: byOwner,
		{models.StatusOnTheWay, models.StatusDelivered}: byOwner | bySessionCourier,
	}),
	models.OrderTypeDineIn: withShared(map[edge]authority{
		{models.StatusPreparing, models.StatusServed}: byOwner,
		{models.StatusServed, models.StatusPaid}:      byWaiter,
	}),
	models.OrderTypeTakeaway: withShared(map[edge]authority{
		{models.StatusPreparing, models.StatusReady}: byOwner,
		{models.StatusReady, models.StatusDelivered}: byOwner,
	}),
}

func withShared(own map[edge]authority) map[edge]authority {
	for e, a := range sharedEdges {
		own[e] = a
	}
	return own
}

// HasEdge reports whether from -> to exists in the graph of orderType.
func HasEdge(orderType models.OrderType, from, to models.OrderStatus) bool {
	_, ok := transitionGraphs[orderType][edge{from, to}]
	return ok
}

// NextStatuses lists the statuses reachable in one step from status.
func NextStatuses(orderType models.OrderType, status models.OrderStatus) []models.OrderStatus {
	var out []models.OrderStatus
	for e := range transitionGraphs[orderType] {
		if e.from == status {
			out = append(out, e.to)
		}
	}
	return out
}

// reachable reports whether target can be reached from start (start itself included).
func reachable(graph map[edge]authority, start, target models.OrderStatus) bool {
	seen := map[models.OrderStatus]bool{start: true}
	queue := []models.OrderStatus{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		for e := range graph {
			if e.from == cur && !seen[e.to] {
				seen[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}
	return false
}

// resolveEdge picks the edge a request for `to` refers to. When the order has
// already moved past the source of that edge the returned edge does not start
// at current, and the CAS reports the race as stale state.
func resolveEdge(graph map[edge]authority, current, to models.OrderStatus) (edge, authority, bool) {
	if a, ok := graph[edge{current, to}]; ok {
		return edge{current, to}, a, true
	}
	for e, a := range graph {
		if e.to == to && reachable(graph, e.from, current) {
			return e, a, true
		}
	}
	return edge{}, 0, false
}

type TransitionAuthority struct {
	orders   storage.IOrderStorage
	sessions storage.ILocationStorage
	log      logger.ILogger
	now      func() time.Time
}

func NewTransitionAuthority(stg storage.IStorage, log logger.ILogger) *TransitionAuthority {
	return &TransitionAuthority{
		orders:   stg.Order(),
		sessions: stg.Location(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply validates and applies order -> to for actor. When expected is non-nil
// the caller pins the source status; otherwise the stored status is used.
// Exactly one of several racing callers on the same edge succeeds.
func (a *TransitionAuthority) Apply(ctx context.Context, orderID int64, expected *models.OrderStatus, to models.OrderStatus, actor models.Actor) (*models.Order, models.StatusChange, error) {
	order, err := a.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, models.StatusChange{}, err
	}

	graph := transitionGraphs[order.Type]
	var (
		e    edge
		auth authority
		ok   bool
	)
	if expected != nil {
		e = edge{*expected, to}
		auth, ok = graph[e]
	} else {
		e, auth, ok = resolveEdge(graph, order.Status, to)
	}
	if !ok {
		return nil, models.StatusChange{}, models.ErrInvalidTransition
	}

	if err := a.authorize(ctx, order, e, auth, actor); err != nil {
		return nil, models.StatusChange{}, err
	}

	change := models.StatusChange{
		OrderID:   order.ID,
		From:      e.from,
		To:        e.to,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
		ChangedAt: a.now(),
	}
	updated, err := a.orders.CompareAndSetStatus(ctx, change)
	if err != nil {
		if errors.Is(err, models.ErrStaleState) {
			a.log.Info("transition lost race",
				logger.Int64("order_id", order.ID),
				logger.String("from", string(e.from)),
				logger.String("to", string(e.to)),
				logger.String("actor_role", string(actor.Role)),
			)
		}
		return nil, models.StatusChange{}, err
	}
	return updated, change, nil
}

func (a *TransitionAuthority) authorize(ctx context.Context, order *models.Order, e edge, auth authority, actor models.Actor) error {
	switch actor.Role {
	case models.RoleRestaurantOwner:
		if auth&byOwner != 0 && actor.WorksAt(order.RestaurantID) {
			return nil
		}
	case models.RoleWaiter:
		if auth&byWaiter != 0 && actor.WorksAt(order.RestaurantID) {
			return nil
		}
	case models.RoleCourier:
		if auth&bySessionCourier == 0 {
			break
		}
		held, err := a.holdsSession(ctx, order, e, actor.ID)
		if err != nil {
			return err
		}
		if held {
			return nil
		}
	}
	return models.ErrUnauthorized
}

// holdsSession checks the courier's claim on the order. If the order already
// left e.from the session may have been stopped by the winning transition, so
// the last holder is still recognised and goes on to lose the CAS.
func (a *TransitionAuthority) holdsSession(ctx context.Context, order *models.Order, e edge, courierID int64) (bool, error) {
	sess, err := a.sessions.GetSession(ctx, order.ID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		a.log.Error("failed to load location session", logger.Int64("order_id", order.ID), logger.Error(err))
		return false, err
	}
	if sess.CourierID != courierID {
		return false, nil
	}
	return sess.Active || order.Status != e.from, nil
}
