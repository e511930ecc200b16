package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Exchange string
}

// RabbitMQ publishes intents to a fanout exchange with publisher confirms.
type RabbitMQ struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	acks     <-chan amqp.Confirmation
	exchange string

	mu sync.Mutex
}

func DialRabbitMQ(cfg RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare %s: %w", cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &RabbitMQ{conn: conn, ch: ch, acks: acks, exchange: cfg.Exchange}, nil
}

func (r *RabbitMQ) Name() string { return "rabbitmq" }

func (r *RabbitMQ) Notify(ctx context.Context, intent Intent) error {
	msg, err := publishing(intent)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ch.PublishWithContext(ctx, r.exchange, intent.EventType, false, false, msg); err != nil {
		return err
	}

	select {
	case conf := <-r.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RabbitMQ) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func publishing(intent Intent) (amqp.Publishing, error) {
	body, err := json.Marshal(intent)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    intent.ID,
		Type:         intent.EventType,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"recipient_role": string(intent.RecipientRole),
			"order_id":       intent.OrderID,
		},
		Body: body,
	}, nil
}
