package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/storage"
)

// subscriber holds a one-slot mailbox; a newer sample replaces an unread one.
type subscriber struct {
	ch   chan models.LocationSample
	once sync.Once
}

func (s *subscriber) offer(sample models.LocationSample) {
	for {
		select {
		case s.ch <- sample:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

type LocationManager struct {
	stg storage.ILocationStorage
	log logger.ILogger
	now func() time.Time

	mu   sync.Mutex
	subs map[int64]map[*subscriber]struct{}
}

func NewLocationManager(stg storage.IStorage, log logger.ILogger) *LocationManager {
	return &LocationManager{
		stg:  stg.Location(),
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
		subs: make(map[int64]map[*subscriber]struct{}),
	}
}

// StartSession binds courierID to the order's feed. Repeating it from the
// same courier is a no-op; another courier gets models.ErrSessionConflict.
func (m *LocationManager) StartSession(ctx context.Context, orderID, courierID int64) (*models.LocationSession, error) {
	sess, err := m.stg.StartSession(ctx, orderID, courierID, m.now())
	if err != nil {
		if errors.Is(err, models.ErrSessionConflict) {
			m.log.Warning("location session conflict", logger.Int64("order_id", orderID), logger.Int64("courier_id", courierID))
		}
		return nil, err
	}
	m.log.Debug("location session active", logger.Int64("order_id", orderID), logger.Int64("courier_id", courierID))
	return sess, nil
}

func (m *LocationManager) ReportSample(ctx context.Context, sample models.LocationSample) error {
	if sample.SampledAt.IsZero() {
		sample.SampledAt = m.now()
	}
	applied, err := m.stg.SaveSample(ctx, sample)
	if err != nil {
		return err
	}
	if !applied {
		m.log.Debug("stale location sample ignored",
			logger.Int64("order_id", sample.OrderID),
			logger.Time("sampled_at", sample.SampledAt),
		)
		return nil
	}
	m.publish(sample)
	return nil
}

// StopSession ends the feed held by courierID. Device failures are logged as
// warnings so operators can tell them apart from a normal stop.
func (m *LocationManager) StopSession(ctx context.Context, orderID, courierID int64, reason models.StopReason) (*models.LocationSession, error) {
	if reason == "" {
		reason = models.StopManual
	}
	if !reason.Valid() {
		return nil, models.Invalid("reason", "unknown stop reason")
	}
	sess, err := m.stg.StopSession(ctx, orderID, courierID, reason, m.now())
	if err != nil {
		return nil, err
	}
	m.closeSubscribers(orderID)

	fields := []logger.Field{
		logger.Int64("order_id", orderID),
		logger.Int64("courier_id", sess.CourierID),
		logger.String("reason", string(reason)),
	}
	if reason.IsDeviceFailure() {
		m.log.Warning("location session stopped by device failure", fields...)
	} else {
		m.log.Info("location session stopped", fields...)
	}
	return sess, nil
}

// stopForOrder is the system stop on a terminal status; no session is fine.
func (m *LocationManager) stopForOrder(ctx context.Context, orderID int64) (*models.LocationSession, error) {
	sess, err := m.StopSession(ctx, orderID, 0, models.StopOrderClosed)
	if errors.Is(err, models.ErrNoActiveSession) {
		return nil, nil
	}
	return sess, err
}

func (m *LocationManager) Latest(ctx context.Context, orderID int64) (*models.LocationSample, error) {
	return m.stg.LatestSample(ctx, orderID)
}

func (m *LocationManager) Session(ctx context.Context, orderID int64) (*models.LocationSession, error) {
	sess, err := m.stg.GetSession(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoActiveSession
	}
	return sess, err
}

// Subscribe delivers every newer sample accepted by this instance. The channel
// is closed when ctx ends or the session stops. Without an active session it
// fails with models.ErrNoActiveSession.
func (m *LocationManager) Subscribe(ctx context.Context, orderID int64) (<-chan models.LocationSample, error) {
	sub := &subscriber{ch: make(chan models.LocationSample, 1)}

	// Registered before the check, so a stop racing with it still closes sub.
	m.mu.Lock()
	if m.subs[orderID] == nil {
		m.subs[orderID] = make(map[*subscriber]struct{})
	}
	m.subs[orderID][sub] = struct{}{}
	m.mu.Unlock()

	sess, err := m.Session(ctx, orderID)
	if err == nil && !sess.Active {
		err = models.ErrNoActiveSession
	}
	if err != nil {
		m.unsubscribe(orderID, sub)
		return nil, err
	}

	go func() {
		<-ctx.Done()
		m.unsubscribe(orderID, sub)
	}()

	return sub.ch, nil
}

func (m *LocationManager) unsubscribe(orderID int64, sub *subscriber) {
	m.mu.Lock()
	delete(m.subs[orderID], sub)
	if len(m.subs[orderID]) == 0 {
		delete(m.subs, orderID)
	}
	m.mu.Unlock()
	sub.close()
}

func (m *LocationManager) publish(sample models.LocationSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs[sample.OrderID] {
		sub.offer(sample)
	}
}

func (m *LocationManager) closeSubscribers(orderID int64) {
	m.mu.Lock()
	subs := m.subs[orderID]
	delete(m.subs, orderID)
	m.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}
