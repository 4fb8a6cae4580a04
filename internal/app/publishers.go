package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/sales/internal/messaging/rabbitmq"
)

// publishers — доставка событий outbox и dead letter queue.
type publishers struct {
	events  domain.OutboxPublisher
	dlq     domain.OutboxPublisher
	closers []func() error
}

func (p *publishers) Close(logger *log.Entry) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close publisher")
		}
	}
}

// initPublishers выбирает брокер: Kafka, затем RabbitMQ. Без брокера события пишутся в лог.
func initPublishers(ctx context.Context, cfg Config, logger *log.Entry) (*publishers, error) {
	p := &publishers{}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "sales-api")
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		p.closers = append(p.closers, producer.Close)
		p.events = kafka.NewOutboxPublisher(producer, cfg.KafkaTopic)
		p.dlq = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
		logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka outbox publisher initialized")
	}

	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL, 5)
		if err != nil {
			p.Close(logger)
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		p.closers = append(p.closers, conn.Close)
		publisher, err := rabbitmq.NewPublisher(conn.Channel(), cfg.RabbitMQExchange)
		if err != nil {
			p.Close(logger)
			return nil, err
		}
		if p.events == nil {
			p.events = publisher
		} else {
			p.events = fanout{p.events, publisher}
		}
		logger.WithField("exchange", cfg.RabbitMQExchange).Info("rabbitmq outbox publisher initialized")
	}

	if p.events == nil {
		p.events = logPublisher{logger: logger.WithField("publisher", "log")}
		logger.Info("no message broker configured, outbox events are logged only")
	}
	return p, nil
}

// fanout доставляет событие во все брокеры. Ошибка любого приводит к повтору всего события,
// поэтому потребители дедуплицируют по идентификатору outbox.
type fanout []domain.OutboxPublisher

func (f fanout) Publish(ctx context.Context, event domain.OutboxMessage) error {
	var errs []error
	for _, publisher := range f {
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("outbox event")
	return nil
}
