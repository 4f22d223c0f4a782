package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RowAppender is the columnar-store side of the consumer, satisfied by
// internal/columnar.Store. It is declared here rather than imported to
// keep events free of a columnar-store dependency.
type RowAppender interface {
	EnsureTable(ctx context.Context) error
	AppendEvent(ctx context.Context, event ClickEvent) error
}

// Consumer drains the click_events queue and appends each event into the
// columnar store with at-least-once acknowledgement discipline (C7).
type Consumer struct {
	logger   *zap.SugaredLogger
	appender RowAppender

	conn    *amqp.Connection
	channel *amqp.Channel

	wg sync.WaitGroup
}

// NewConsumer connects to url, declares the same durable topology the
// publisher uses, and ensures the target columnar table exists.
func NewConsumer(ctx context.Context, url string, appender RowAppender, logger *zap.SugaredLogger) (*Consumer, error) {
	if err := appender.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("events: ensure columnar table: %w", err)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial bus: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: bind queue: %w", err)
	}

	// Process one message at a time per consumer process; horizontal
	// scale comes from running more consumer processes (§4.7).
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: set qos: %w", err)
	}

	return &Consumer{logger: logger, appender: appender, conn: conn, channel: ch}, nil
}

// Run blocks consuming deliveries until ctx is cancelled. On cancellation
// it stops accepting new deliveries and waits for in-flight processing to
// finish acking or nacking before returning (§5, consumer shutdown).
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("events: start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.wg.Wait()
				return nil
			}
			c.wg.Add(1)
			go func(d amqp.Delivery) {
				defer c.wg.Done()
				c.process(ctx, d)
			}(delivery)
		}
	}
}

// process implements the per-message scope from §4.7: decode, normalise,
// append, then ack iff every step succeeded. A decode failure is a
// permanent error and is nacked without requeue (retrying a message that
// can never parse would loop forever); an append failure is transient and
// is nacked with requeue so the bus redelivers it.
func (c *Consumer) process(ctx context.Context, delivery amqp.Delivery) {
	var event ClickEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Errorw("click event decode failed, discarding message", "error", err)
		delivery.Nack(false, false)
		return
	}

	event.Timestamp = normaliseTimestamp(event.Timestamp)

	if err := c.appender.AppendEvent(ctx, event); err != nil {
		c.logger.Errorw("click event append failed, requeuing message", "code", event.Code, "error", err)
		delivery.Nack(false, true)
		return
	}

	delivery.Ack(false)
}

// normaliseTimestamp truncates to second precision, since the columnar
// store's DateTime column lacks sub-second resolution (§4.7 step 2).
func normaliseTimestamp(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// Close tears down the bus connection.
func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
