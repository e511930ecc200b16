// Package notify delivers fire-and-forget notification intents to the
// external notification collaborators.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
)

const (
	EventSessionStopped = "location.session_stopped"
)

type Intent struct {
	ID            string             `json:"id"`
	EventType     string             `json:"event_type"`
	OrderID       int64              `json:"order_id"`
	RestaurantID  int64              `json:"restaurant_id"`
	RecipientRole models.Role        `json:"recipient_role"`
	RecipientID   int64              `json:"recipient_id,omitempty"`
	Status        models.OrderStatus `json:"status,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func NewIntent(eventType string, orderID int64, role models.Role, at time.Time) Intent {
	return Intent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		OrderID:       orderID,
		RecipientRole: role,
		OccurredAt:    at,
	}
}

// StatusEvent names the event emitted when an order reaches status.
func StatusEvent(status models.OrderStatus) string {
	return "order." + string(status)
}

// Text renders a short human readable line for chat notifiers.
func (i Intent) Text() string {
	if i.EventType == EventSessionStopped {
		return fmt.Sprintf("Order #%d: courier location feed stopped (%s)", i.OrderID, i.Reason)
	}
	return fmt.Sprintf("Order #%d is now %s", i.OrderID, i.Status)
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, intent Intent) error
}

// Dispatcher hands intents off without blocking the caller.
type Dispatcher interface {
	Dispatch(intents ...Intent)
}

type Async struct {
	notifiers []Notifier
	timeout   time.Duration
	log       logger.ILogger
	wg        sync.WaitGroup
}

func NewAsync(log logger.ILogger, timeout time.Duration, notifiers ...Notifier) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{notifiers: notifiers, timeout: timeout, log: log}
}

func (a *Async) Dispatch(intents ...Intent) {
	for _, intent := range intents {
		for _, n := range a.notifiers {
			a.wg.Add(1)
			go a.deliver(n, intent)
		}
	}
}

func (a *Async) deliver(n Notifier, intent Intent) {
	defer a.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := n.Notify(ctx, intent); err != nil {
		a.log.Warning("notification failed",
			logger.String("notifier", n.Name()),
			logger.String("event_type", intent.EventType),
			logger.Int64("order_id", intent.OrderID),
			logger.Error(err),
		)
	}
}

// Wait blocks until every dispatched intent was attempted.
func (a *Async) Wait() {
	a.wg.Wait()
}

// LogNotifier writes intents to the service log.
type LogNotifier struct {
	log logger.ILogger
}

func NewLogNotifier(log logger.ILogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, intent Intent) error {
	n.log.Info("notification",
		logger.String("id", intent.ID),
		logger.String("event_type", intent.EventType),
		logger.Int64("order_id", intent.OrderID),
		logger.String("recipient_role", string(intent.RecipientRole)),
	)
	return nil
}
