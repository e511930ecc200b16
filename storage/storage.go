package storage

import (
	"context"
	"time"

	"fulfillment/pkg/models"
)

type IStorage interface {
	Order() IOrderStorage
	Table() ITableStorage
	Location() ILocationStorage
	Ping(ctx context.Context) error
	Close()
}

type IOrderStorage interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	// CompareAndSetStatus moves the order from change.From to change.To only if
	// its status is still change.From, and records the change in the same
	// atomic operation. A mismatch yields *models.StaleStateError.
	CompareAndSetStatus(ctx context.Context, change models.StatusChange) (*models.Order, error)
	GetActiveDineIn(ctx context.Context, restaurantID int64) ([]*models.Order, error)
	GetHistory(ctx context.Context, orderID int64) ([]*models.StatusChange, error)
}

type ITableStorage interface {
	Create(ctx context.Context, table *models.Table) (*models.Table, error)
	Get(ctx context.Context, restaurantID int64, number int) (*models.Table, error)
	GetAll(ctx context.Context, restaurantID int64) ([]*models.Table, error)
	UpdateBaseStatus(ctx context.Context, restaurantID int64, number int, status models.TableStatus) (*models.Table, error)
}

type ILocationStorage interface {
	// StartSession activates a session unless another courier holds an active
	// one (models.ErrSessionConflict). Restarting by the holder is a no-op.
	StartSession(ctx context.Context, orderID, courierID int64, at time.Time) (*models.LocationSession, error)
	GetSession(ctx context.Context, orderID int64) (*models.LocationSession, error)
	// StopSession deactivates the active session. courierID 0 matches any holder.
	// Returns models.ErrNoActiveSession when nothing matched.
	StopSession(ctx context.Context, orderID, courierID int64, reason models.StopReason, at time.Time) (*models.LocationSession, error)
	// SaveSample stores the sample if it is newer than the stored one. applied
	// is false for stragglers. models.ErrNoActiveSession when the courier does
	// not hold an active session for the order.
	SaveSample(ctx context.Context, sample models.LocationSample) (applied bool, err error)
	LatestSample(ctx context.Context, orderID int64) (*models.LocationSample, error)
}
