package service

import (
	"context"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/storage"
)

// OccupiesTable reports whether o keeps its table occupied.
func OccupiesTable(o *models.Order) bool {
	if o.Type != models.OrderTypeDineIn || o.TableNumber == nil {
		return false
	}
	switch o.Status {
	case models.StatusPending, models.StatusAccepted, models.StatusPreparing, models.StatusServed:
		return true
	}
	return false
}

// Resolve derives the displayed status of t. unavailable always wins; otherwise
// any active dine-in order on the table makes it occupied.
func Resolve(t models.Table, orders []*models.Order) models.TableView {
	view := models.TableView{
		Number:        t.Number,
		Chairs:        t.Chairs,
		BaseStatus:    t.BaseStatus,
		DisplayStatus: t.BaseStatus,
	}
	if t.BaseStatus == models.TableUnavailable {
		return view
	}
	for _, o := range orders {
		if o.RestaurantID == t.RestaurantID && OccupiesTable(o) && *o.TableNumber == t.Number {
			view.DisplayStatus = models.TableOccupied
			break
		}
	}
	return view
}

type OccupancyResolver struct {
	tables storage.ITableStorage
	orders storage.IOrderStorage
	log    logger.ILogger
}

func NewOccupancyResolver(stg storage.IStorage, log logger.ILogger) *OccupancyResolver {
	return &OccupancyResolver{
		tables: stg.Table(),
		orders: stg.Order(),
		log:    log,
	}
}

// ListTables is the floor view for the restaurant's own staff.
func (r *OccupancyResolver) ListTables(ctx context.Context, actor models.Actor, restaurantID int64) ([]models.TableView, error) {
	if !actor.WorksAt(restaurantID) {
		return nil, models.ErrUnauthorized
	}
	tables, err := r.tables.GetAll(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	active, err := r.orders.GetActiveDineIn(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	views := make([]models.TableView, 0, len(tables))
	for _, t := range tables {
		views = append(views, Resolve(*t, active))
	}
	return views, nil
}

func (r *OccupancyResolver) GetTable(ctx context.Context, restaurantID int64, number int) (*models.TableView, error) {
	t, err := r.tables.Get(ctx, restaurantID, number)
	if err != nil {
		return nil, err
	}
	active, err := r.orders.GetActiveDineIn(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	view := Resolve(*t, active)
	return &view, nil
}

func (r *OccupancyResolver) CreateTable(ctx context.Context, actor models.Actor, t models.Table) (*models.TableView, error) {
	if actor.Role != models.RoleRestaurantOwner || !actor.WorksAt(t.RestaurantID) {
		return nil, models.ErrUnauthorized
	}
	if t.Number < 1 {
		return nil, models.Invalid("number", "must be at least 1")
	}
	if t.Chairs < models.MinChairs || t.Chairs > models.MaxChairs {
		return nil, models.Invalid("chairs", "must be between 2 and 8")
	}
	if t.BaseStatus == "" {
		t.BaseStatus = models.TableAvailable
	}
	if t.BaseStatus != models.TableAvailable && t.BaseStatus != models.TableUnavailable {
		return nil, models.Invalid("base_status", "must be available or unavailable")
	}

	created, err := r.tables.Create(ctx, &t)
	if err != nil {
		return nil, err
	}
	r.log.Info("table created", logger.Int64("restaurant_id", created.RestaurantID), logger.Int("number", created.Number))
	return r.GetTable(ctx, created.RestaurantID, created.Number)
}

// SetBaseStatus is the only write path for table status. It is allowed while
// the table is occupied.
func (r *OccupancyResolver) SetBaseStatus(ctx context.Context, actor models.Actor, restaurantID int64, number int, status models.TableStatus) (*models.TableView, error) {
	if actor.Role != models.RoleWaiter || !actor.WorksAt(restaurantID) {
		return nil, models.ErrUnauthorized
	}
	if status != models.TableAvailable && status != models.TableUnavailable {
		return nil, models.Invalid("base_status", "must be available or unavailable")
	}
	if _, err := r.tables.UpdateBaseStatus(ctx, restaurantID, number, status); err != nil {
		return nil, err
	}
	r.log.Info("table base status set",
		logger.Int64("restaurant_id", restaurantID),
		logger.Int("number", number),
		logger.String("base_status", string(status)),
		logger.Int64("waiter_id", actor.ID),
	)
	return r.GetTable(ctx, restaurantID, number)
}
