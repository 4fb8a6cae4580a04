package rabbitmq

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	// DefaultExchange — topic exchange для событий продаж.
	DefaultExchange = "sales.events"
	exchangeKind    = "topic"
)

// Channel — подмножество *amqp.Channel, которое нужно паблишеру.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection хранит соединение и канал RabbitMQ.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial подключается к брокеру с несколькими попытками, пока брокер поднимается.
func Dial(ctx context.Context, url string, attempts int) (*Connection, error) {
	if attempts <= 0 {
		attempts = 1
	}
	logger := log.WithField("component", "rabbitmq")

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("attempt", i+1).Warn("failed to connect to rabbitmq")
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	return &Connection{conn: conn, ch: ch}, nil
}

// Channel возвращает открытый канал.
func (c *Connection) Channel() *amqp.Channel {
	return c.ch
}

// Close закрывает канал и соединение.
func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	chErr := c.ch.Close()
	connErr := c.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}

// Publisher публикует outbox-сообщения в topic exchange. Routing key — тип события,
// например order.created.
type Publisher struct {
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher объявляет exchange и возвращает паблишер.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("rabbitmq channel is required")
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("could not declare exchange %q: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

func (p *Publisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.ch == nil {
		return fmt.Errorf("rabbitmq publisher is not initialized")
	}

	routingKey := event.EventType
	if routingKey == "" {
		routingKey = event.AggregateType
	}

	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    p.now().UTC(),
		Type:         event.EventType,
		Headers: amqp.Table{
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
		},
		Body:         event.Payload,
	})
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
