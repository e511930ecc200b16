package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/storage"
)

const (
	sessionColumns = `order_id, courier_id, active, started_at, stopped_at, stop_reason`
	closedStatuses = `('delivered', 'paid', 'rejected')`
)

type locationRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewLocationRepo(db *pgxpool.Pool, log logger.ILogger) storage.ILocationStorage {
	return &locationRepo{db: db, log: log}
}

func (r *locationRepo) StartSession(ctx context.Context, orderID, courierID int64, at time.Time) (*models.LocationSession, error) {
	// FOR SHARE on the order conflicts with the status CAS, so a closing
	// transition cannot slip between the status check and the session write.
	// The upsert only overwrites an inactive row, so a live session can never
	// change hands here. A new courier does not inherit the previous one's sample.
	query := `
		WITH o AS (
			SELECT id FROM orders
			WHERE id = $1 AND order_type = 'delivery' AND status NOT IN ` + closedStatuses + `
			FOR SHARE
		), up AS (
			INSERT INTO location_sessions (order_id, courier_id, active, started_at, stopped_at, stop_reason)
			SELECT o.id, $2, TRUE, $3, NULL, '' FROM o
			ON CONFLICT (order_id) DO UPDATE
			SET courier_id = EXCLUDED.courier_id, active = TRUE, started_at = EXCLUDED.started_at,
			    stopped_at = NULL, stop_reason = ''
			WHERE NOT location_sessions.active
			RETURNING ` + sessionColumns + `
		), cleared AS (
			DELETE FROM location_samples
			WHERE order_id IN (SELECT order_id FROM up) AND courier_id <> $2
		)
		SELECT ` + sessionColumns + ` FROM up`

	s, err := scanSession(r.db.QueryRow(ctx, query, orderID, courierID, at))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("failed to start location session", logger.Int64("order_id", orderID), logger.Error(err))
		return nil, wrapErr(err)
	}

	if err := r.openDelivery(ctx, orderID); err != nil {
		return nil, err
	}
	existing, err := r.GetSession(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Active && existing.CourierID == courierID {
		return existing, nil
	}
	return nil, models.ErrSessionConflict
}

// openDelivery explains why no session row was written for orderID.
func (r *locationRepo) openDelivery(ctx context.Context, orderID int64) error {
	var (
		orderType models.OrderType
		status    models.OrderStatus
	)
	err := r.db.QueryRow(ctx, `SELECT order_type, status FROM orders WHERE id = $1`, orderID).Scan(&orderType, &status)
	if err != nil {
		return wrapErr(err)
	}
	if orderType != models.OrderTypeDelivery {
		return models.Invalid("order_type", "only delivery orders carry a location feed")
	}
	if status.IsTerminal() {
		return models.Invalid("status", "order is closed")
	}
	return nil
}

func (r *locationRepo) GetSession(ctx context.Context, orderID int64) (*models.LocationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM location_sessions WHERE order_id = $1`
	s, err := scanSession(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, wrapErr(err)
	}
	return s, nil
}

func (r *locationRepo) StopSession(ctx context.Context, orderID, courierID int64, reason models.StopReason, at time.Time) (*models.LocationSession, error) {
	query := `
		UPDATE location_sessions SET active = FALSE, stopped_at = $3, stop_reason = $4
		WHERE order_id = $1 AND active AND ($2::BIGINT = 0 OR courier_id = $2)
		RETURNING ` + sessionColumns

	s, err := scanSession(r.db.QueryRow(ctx, query, orderID, courierID, at, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNoActiveSession
	}
	if err != nil {
		r.log.Error("failed to stop location session", logger.Int64("order_id", orderID), logger.Error(err))
		return nil, wrapErr(err)
	}
	return s, nil
}

func (r *locationRepo) SaveSample(ctx context.Context, sample models.LocationSample) (bool, error) {
	// A session left active on a closed order, e.g. after a failed system
	// stop, takes no samples.
	query := `
		WITH s AS (
			SELECT ls.order_id FROM location_sessions ls
			JOIN orders o ON o.id = ls.order_id
			WHERE ls.order_id = $1 AND ls.courier_id = $2 AND ls.active
			  AND o.status NOT IN ` + closedStatuses + `
			FOR SHARE
		), up AS (
			INSERT INTO location_samples (order_id, courier_id, lat, lng, bearing_degrees, speed, accuracy_meters, sampled_at)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8 FROM s
			ON CONFLICT (order_id) DO UPDATE
			SET courier_id = EXCLUDED.courier_id, lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			    bearing_degrees = EXCLUDED.bearing_degrees, speed = EXCLUDED.speed,
			    accuracy_meters = EXCLUDED.accuracy_meters, sampled_at = EXCLUDED.sampled_at
			WHERE location_samples.sampled_at < EXCLUDED.sampled_at
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM s), EXISTS (SELECT 1 FROM up)
	`
	var active, applied bool
	err := r.db.QueryRow(ctx, query,
		sample.OrderID,
		sample.CourierID,
		sample.Lat,
		sample.Lng,
		sample.BearingDegrees,
		sample.Speed,
		sample.AccuracyMeters,
		sample.SampledAt,
	).Scan(&active, &applied)
	if err != nil {
		r.log.Error("failed to save location sample", logger.Int64("order_id", sample.OrderID), logger.Error(err))
		return false, wrapErr(err)
	}
	if !active {
		return false, models.ErrNoActiveSession
	}
	return applied, nil
}

func (r *locationRepo) LatestSample(ctx context.Context, orderID int64) (*models.LocationSample, error) {
	query := `
		SELECT order_id, courier_id, lat, lng, bearing_degrees, speed, accuracy_meters, sampled_at
		FROM location_samples
		WHERE order_id = $1
	`
	var s models.LocationSample
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&s.OrderID, &s.CourierID, &s.Lat, &s.Lng, &s.BearingDegrees, &s.Speed, &s.AccuracyMeters, &s.SampledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNoSample
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	return &s, nil
}

func scanSession(row pgx.Row) (*models.LocationSession, error) {
	var s models.LocationSession
	if err := row.Scan(&s.OrderID, &s.CourierID, &s.Active, &s.StartedAt, &s.StoppedAt, &s.StopReason); err != nil {
		return nil, err
	}
	return &s, nil
}
