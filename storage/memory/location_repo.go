package memory

import (
	"context"
	"time"

	"fulfillment/pkg/models"
)

type locationRepo struct{ s *Store }

func (r locationRepo) StartSession(ctx context.Context, orderID, courierID int64, at time.Time) (*models.LocationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Checked under the same lock as CompareAndSetStatus, so a closing
	// transition either sees this session or this call sees the closed order.
	if err := r.s.openDelivery(orderID); err != nil {
		return nil, err
	}
	if cur, ok := r.s.sessions[orderID]; ok && cur.Active {
		if cur.CourierID != courierID {
			return nil, models.ErrSessionConflict
		}
		cp := *cur
		return &cp, nil
	}
	if prev, ok := r.s.samples[orderID]; ok && prev.CourierID != courierID {
		delete(r.s.samples, orderID)
	}
	sess := &models.LocationSession{OrderID: orderID, CourierID: courierID, Active: true, StartedAt: at}
	r.s.sessions[orderID] = sess
	cp := *sess
	return &cp, nil
}

func (r locationRepo) GetSession(ctx context.Context, orderID int64) (*models.LocationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r locationRepo) StopSession(ctx context.Context, orderID, courierID int64, reason models.StopReason, at time.Time) (*models.LocationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[orderID]
	if !ok || !sess.Active || (courierID != 0 && sess.CourierID != courierID) {
		return nil, models.ErrNoActiveSession
	}
	sess.Active = false
	sess.StoppedAt = &at
	sess.StopReason = reason
	cp := *sess
	return &cp, nil
}

func (r locationRepo) SaveSample(ctx context.Context, sample models.LocationSample) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[sample.OrderID]
	if !ok || !sess.Active || sess.CourierID != sample.CourierID {
		return false, models.ErrNoActiveSession
	}
	if r.s.openDelivery(sample.OrderID) != nil {
		return false, models.ErrNoActiveSession
	}
	if cur, ok := r.s.samples[sample.OrderID]; ok && !cur.SampledAt.Before(sample.SampledAt) {
		return false, nil
	}
	r.s.samples[sample.OrderID] = &sample
	return true, nil
}

func (r locationRepo) LatestSample(ctx context.Context, orderID int64) (*models.LocationSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sample, ok := r.s.samples[orderID]
	if !ok {
		return nil, models.ErrNoSample
	}
	cp := *sample
	return &cp, nil
}

// openDelivery reports whether orderID is a delivery order that can still
// carry a location feed. Callers hold s.mu.
func (s *Store) openDelivery(orderID int64) error {
	o, ok := s.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if o.Type != models.OrderTypeDelivery {
		return models.Invalid("order_type", "only delivery orders carry a location feed")
	}
	if o.Status.IsTerminal() {
		return models.Invalid("status", "order is closed")
	}
	return nil
}
