package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"rocket-mimo/internal/domain"
)

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// DialAMQP connects to RabbitMQ, retrying up to maxRetries times.
func DialAMQP(ctx context.Context, url string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			logger.Info("connected to rabbitmq")
			return conn, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			logger.Warn("rabbitmq connect failed, retrying",
				zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries),
				zap.Duration("delay", retryDelay), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("connect rabbitmq after %d attempts: %w", maxRetries, lastErr)
}

// AMQPPublisher publishes ledger events as persistent JSON messages to a
// durable queue.
type AMQPPublisher struct {
	channel amqpChannel
	queue   string
	logger  *zap.Logger
}

// NewAMQPPublisher opens a channel on conn and declares queue.
func NewAMQPPublisher(conn *amqp.Connection, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newAMQPPublisher(ch, queue, logger)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{channel: ch, queue: queue, logger: logger.Named("amqp")}, nil
}

// Name implements Sink.
func (p *AMQPPublisher) Name() string { return "amqp" }

// Handle implements Sink.
func (p *AMQPPublisher) Handle(ctx context.Context, ev domain.LedgerEvent) error {
	body, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    ev.EventID,
			Type:         ev.Type.String(),
			Timestamp:    time.UnixMilli(ev.Timestamp),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	p.logger.Debug("published", zap.String("queue", p.queue), zap.String("event_id", ev.EventID))
	return nil
}

// Close closes the channel.
func (p *AMQPPublisher) Close() error {
	return p.channel.Close()
}
