package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/pkg/notify"
	"fulfillment/storage"
)

// Coordinator is the entry point for every caller. It sequences the
// transition authority, table occupancy, location sessions and notifications.
type Coordinator struct {
	orders      storage.IOrderStorage
	tables      storage.ITableStorage
	transitions *TransitionAuthority
	occupancy   *OccupancyResolver
	locations   *LocationManager
	dispatcher  notify.Dispatcher
	log         logger.ILogger
	now         func() time.Time
}

func NewCoordinator(stg storage.IStorage, dispatcher notify.Dispatcher, log logger.ILogger) *Coordinator {
	return &Coordinator{
		orders:      stg.Order(),
		tables:      stg.Table(),
		transitions: NewTransitionAuthority(stg, log),
		occupancy:   NewOccupancyResolver(stg, log),
		locations:   NewLocationManager(stg, log),
		dispatcher:  dispatcher,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (c *Coordinator) CreateOrder(ctx context.Context, actor models.Actor, req models.CreateOrder) (*models.Order, error) {
	if actor.Role != models.RoleCustomer {
		return nil, models.ErrUnauthorized
	}
	req.CustomerID = actor.ID

	total, err := validateCreate(req)
	if err != nil {
		return nil, err
	}
	if req.Type == models.OrderTypeDineIn {
		if _, err := c.tables.Get(ctx, req.RestaurantID, *req.TableNumber); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.Invalid("table_number", "no such table")
			}
			return nil, err
		}
	}

	now := c.now()
	order := &models.Order{
		CustomerID:       req.CustomerID,
		RestaurantID:     req.RestaurantID,
		Type:             req.Type,
		Status:           models.StatusPending,
		Items:            append([]models.OrderItem(nil), req.Items...),
		TableNumber:      req.TableNumber,
		DeliveryLocation: req.DeliveryLocation,
		Total:            total,
		TipAmount:        req.TipAmount,
		FinalTotal:       total + req.TipAmount,
		CreatedAt:        now,
	}
	order, err = c.orders.Create(ctx, order)
	if err != nil {
		return nil, err
	}

	c.log.Info("order created",
		logger.Int64("order_id", order.ID),
		logger.String("order_type", string(order.Type)),
		logger.Int64("restaurant_id", order.RestaurantID),
	)
	intent := notify.NewIntent(notify.StatusEvent(models.StatusPending), order.ID, models.RoleRestaurantOwner, now)
	intent.RestaurantID = order.RestaurantID
	intent.Status = models.StatusPending
	c.dispatcher.Dispatch(intent)

	return order, nil
}

func validateCreate(req models.CreateOrder) (int64, error) {
	if req.RestaurantID <= 0 {
		return 0, models.Invalid("restaurant_id", "is required")
	}
	if !req.Type.Valid() {
		return 0, models.Invalid("order_type", "must be delivery, dine_in or takeaway")
	}
	if len(req.Items) == 0 {
		return 0, models.Invalid("items", "must not be empty")
	}

	var total int64
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return 0, models.Invalid("items.quantity", "must be at least 1")
		}
		if it.UnitPrice < 0 {
			return 0, models.Invalid("items.unit_price", "must not be negative")
		}
		if it.UnitPrice > (math.MaxInt64-total)/int64(it.Quantity) {
			return 0, models.Invalid("items", "total overflows")
		}
		total += it.UnitPrice * int64(it.Quantity)
	}

	switch req.Type {
	case models.OrderTypeDineIn:
		if req.TableNumber == nil || req.DeliveryLocation != nil {
			return 0, models.Invalid("table_number", "dine_in orders need a table and no delivery location")
		}
		if *req.TableNumber < 1 {
			return 0, models.Invalid("table_number", "must be at least 1")
		}
	case models.OrderTypeDelivery:
		if req.DeliveryLocation == nil || req.TableNumber != nil {
			return 0, models.Invalid("delivery_location", "delivery orders need a delivery location and no table")
		}
		if strings.TrimSpace(req.DeliveryLocation.Address) == "" {
			return 0, models.Invalid("delivery_location.address", "is required")
		}
		if !validCoordinates(req.DeliveryLocation.Coordinates) {
			return 0, models.Invalid("delivery_location.coordinates", "out of range")
		}
	case models.OrderTypeTakeaway:
		if req.TableNumber != nil || req.DeliveryLocation != nil {
			return 0, models.Invalid("order_type", "takeaway orders take no table or delivery location")
		}
	}

	if req.TipAmount < 0 {
		return 0, models.Invalid("tip_amount", "must not be negative")
	}
	if req.TipAmount > 0 && req.Type != models.OrderTypeDelivery {
		return 0, models.Invalid("tip_amount", "only delivery orders take a tip")
	}
	if req.TipAmount > math.MaxInt64-total {
		return 0, models.Invalid("tip_amount", "total overflows")
	}
	return total, nil
}

func validCoordinates(c models.Coordinates) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c *Coordinator) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := c.canView(ctx, actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (c *Coordinator) History(ctx context.Context, actor models.Actor, orderID int64) ([]*models.StatusChange, error) {
	if _, err := c.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return c.orders.GetHistory(ctx, orderID)
}

// RequestTransition moves the order to `to` on behalf of actor.
func (c *Coordinator) RequestTransition(ctx context.Context, orderID int64, to models.OrderStatus, actor models.Actor) (*models.TransitionResult, error) {
	return c.requestTransition(ctx, orderID, nil, to, actor)
}

// RequestTransitionFrom is RequestTransition with the source status pinned by
// the caller, for clients that act on a status they displayed.
func (c *Coordinator) RequestTransitionFrom(ctx context.Context, orderID int64, from, to models.OrderStatus, actor models.Actor) (*models.TransitionResult, error) {
	return c.requestTransition(ctx, orderID, &from, to, actor)
}

func (c *Coordinator) requestTransition(ctx context.Context, orderID int64, from *models.OrderStatus, to models.OrderStatus, actor models.Actor) (*models.TransitionResult, error) {
	order, change, err := c.transitions.Apply(ctx, orderID, from, to, actor)
	if err != nil {
		return nil, err
	}

	c.log.Info("order status changed",
		logger.Int64("order_id", order.ID),
		logger.String("from", string(change.From)),
		logger.String("to", string(change.To)),
		logger.String("actor_role", string(actor.Role)),
		logger.Int64("actor_id", actor.ID),
	)

	result := &models.TransitionResult{
		OrderID:   order.ID,
		Status:    order.Status,
		Timestamp: change.ChangedAt,
	}

	// The status is committed; side effects below are best effort and never undo it.
	if order.Type == models.OrderTypeDineIn && order.TableNumber != nil {
		view, err := c.occupancy.GetTable(ctx, order.RestaurantID, *order.TableNumber)
		if err != nil {
			c.log.Warning("table occupancy recompute failed", logger.Int64("order_id", order.ID), logger.Error(err))
		} else {
			result.Table = view
		}
	}

	if order.Status.IsTerminal() {
		if _, err := c.locations.stopForOrder(ctx, order.ID); err != nil {
			c.log.Error("failed to stop location session", logger.Int64("order_id", order.ID), logger.Error(err))
		}
	}

	c.dispatcher.Dispatch(statusIntents(order, actor, change.ChangedAt)...)

	return result, nil
}

// statusIntents decides who hears about a status change.
func statusIntents(order *models.Order, actor models.Actor, at time.Time) []notify.Intent {
	var roles []models.Role
	switch order.Status {
	case models.StatusPaid:
		roles = []models.Role{models.RoleRestaurantOwner}
	case models.StatusServed:
		roles = []models.Role{models.RoleCustomer, models.RoleWaiter}
	case models.StatusPreparing:
		roles = []models.Role{models.RoleCustomer}
		if order.Type == models.OrderTypeDelivery {
			roles = append(roles, models.RoleCourier)
		}
	case models.StatusDelivered:
		roles = []models.Role{models.RoleCustomer}
		if actor.Role == models.RoleCourier {
			roles = append(roles, models.RoleRestaurantOwner)
		}
	default:
		roles = []models.Role{models.RoleCustomer}
	}

	intents := make([]notify.Intent, 0, len(roles))
	for _, role := range roles {
		i := notify.NewIntent(notify.StatusEvent(order.Status), order.ID, role, at)
		i.RestaurantID = order.RestaurantID
		i.Status = order.Status
		if role == models.RoleCustomer {
			i.RecipientID = order.CustomerID
		}
		intents = append(intents, i)
	}
	return intents
}

func (c *Coordinator) StartSession(ctx context.Context, actor models.Actor, orderID int64) (*models.LocationSession, error) {
	if actor.Role != models.RoleCourier {
		return nil, models.ErrUnauthorized
	}
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Type != models.OrderTypeDelivery {
		return nil, models.Invalid("order_type", "only delivery orders carry a location feed")
	}
	if order.Status.IsTerminal() {
		return nil, models.Invalid("status", "order is closed")
	}
	return c.locations.StartSession(ctx, orderID, actor.ID)
}

func (c *Coordinator) ReportSample(ctx context.Context, actor models.Actor, sample models.LocationSample) error {
	if actor.Role != models.RoleCourier {
		return models.ErrUnauthorized
	}
	if math.IsNaN(sample.Lat) || sample.Lat < -90 || sample.Lat > 90 || math.IsNaN(sample.Lng) || sample.Lng < -180 || sample.Lng > 180 {
		return models.Invalid("coordinates", "out of range")
	}
	sample.CourierID = actor.ID
	return c.locations.ReportSample(ctx, sample)
}

// StopSession is the courier-side stop, including stops caused by a device
// losing its position; those reasons are forwarded to the restaurant.
func (c *Coordinator) StopSession(ctx context.Context, actor models.Actor, orderID int64, reason models.StopReason) (*models.LocationSession, error) {
	if actor.Role != models.RoleCourier {
		return nil, models.ErrUnauthorized
	}
	sess, err := c.locations.StopSession(ctx, orderID, actor.ID, reason)
	if err != nil {
		return nil, err
	}
	if sess.StopReason.IsDeviceFailure() {
		intent := notify.NewIntent(notify.EventSessionStopped, orderID, models.RoleRestaurantOwner, c.now())
		intent.Reason = string(sess.StopReason)
		if order, err := c.orders.GetByID(ctx, orderID); err == nil {
			intent.RestaurantID = order.RestaurantID
		}
		c.dispatcher.Dispatch(intent)
	}
	return sess, nil
}

func (c *Coordinator) Session(ctx context.Context, actor models.Actor, orderID int64) (*models.LocationSession, error) {
	if _, err := c.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return c.locations.Session(ctx, orderID)
}

func (c *Coordinator) Latest(ctx context.Context, actor models.Actor, orderID int64) (*models.LocationSample, error) {
	if _, err := c.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return c.locations.Latest(ctx, orderID)
}

// Subscribe streams newer samples to a viewer of the order until ctx ends or
// the session stops. Without a live session it fails with
// models.ErrNoActiveSession.
func (c *Coordinator) Subscribe(ctx context.Context, actor models.Actor, orderID int64) (<-chan models.LocationSample, error) {
	if _, err := c.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return c.locations.Subscribe(ctx, orderID)
}

func (c *Coordinator) ListTables(ctx context.Context, actor models.Actor, restaurantID int64) ([]models.TableView, error) {
	return c.occupancy.ListTables(ctx, actor, restaurantID)
}

func (c *Coordinator) CreateTable(ctx context.Context, actor models.Actor, t models.Table) (*models.TableView, error) {
	return c.occupancy.CreateTable(ctx, actor, t)
}

func (c *Coordinator) SetTableStatus(ctx context.Context, actor models.Actor, restaurantID int64, number int, status models.TableStatus) (*models.TableView, error) {
	return c.occupancy.SetBaseStatus(ctx, actor, restaurantID, number, status)
}

// canView enforces that the actor relates to the order.
func (c *Coordinator) canView(ctx context.Context, actor models.Actor, order *models.Order) error {
	switch actor.Role {
	case models.RoleCustomer:
		if order.CustomerID == actor.ID {
			return nil
		}
	case models.RoleRestaurantOwner, models.RoleWaiter:
		if actor.WorksAt(order.RestaurantID) {
			return nil
		}
	case models.RoleCourier:
		// A courier relates to an order through its location session, live or last.
		if order.Type != models.OrderTypeDelivery {
			break
		}
		sess, err := c.locations.Session(ctx, order.ID)
		if err == nil && sess.CourierID == actor.ID {
			return nil
		}
		if err != nil && !errors.Is(err, models.ErrNoActiveSession) {
			return err
		}
	}
	return models.ErrUnauthorized
}
