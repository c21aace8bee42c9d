// Package broker publishes booking and event lifecycle messages to a
// RabbitMQ topic exchange.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys.
const (
	TopicBookingCreated   = "booking.created"
	TopicBookingCancelled = "booking.cancelled"
	TopicEventCreated     = "event.created"
	TopicEventDeleted     = "event.deleted"
)

// BookingMessage is published when a booking is created or cancelled.
// AvailableSeats is the ledger value right after the change.
type BookingMessage struct {
	BookingID      string    `json:"booking_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	SeatCount      int       `json:"seat_count"`
	AvailableSeats int       `json:"available_seats"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventMessage is published when an event is created or deleted.
type EventMessage struct {
	EventID     string    `json:"event_id"`
	OrganizerID string    `json:"organizer_id"`
	Title       string    `json:"title,omitempty"`
	MaxSeats    int       `json:"max_seats,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher sends a message under a routing key.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg any) error
	Close() error
}

// Nop discards every message. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// AMQP publishes JSON messages to a durable topic exchange, reconnecting
// lazily when the connection drops.
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
}

// Dial connects and declares the exchange.
func Dial(url, exchange string) (*AMQP, error) {
	b := &AMQP{url: url, exchange: exchange}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *AMQP) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		b.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	b.conn = conn
	b.channel = ch
	return nil
}

func (b *AMQP) ensureConnection() error {
	if b.conn != nil && !b.conn.IsClosed() && b.channel != nil && !b.channel.IsClosed() {
		return nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
	return b.connect()
}

// Publish sends msg as persistent JSON under topic.
func (b *AMQP) Publish(ctx context.Context, topic string, msg any) error {
	pub, err := encode(msg, time.Now())
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureConnection(); err != nil {
		return err
	}
	if err := b.channel.PublishWithContext(ctx, b.exchange, topic, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the channel and connection.
func (b *AMQP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func encode(msg any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Body:         body,
	}, nil
}
