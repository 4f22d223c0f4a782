package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName = "url_shortener"
	queueName    = "click_events"
	routingKey   = "click_events"
)

// Publisher enqueues click events onto the durable bus. Construction may
// fail (the bus may be unreachable at startup); callers get a disabled
// null-object Publisher in that case rather than a construction error,
// matching the Python reference's "publisher disabled" degrade mode (§4.6):
// the redirect path keeps working, just without analytics.
type Publisher struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	enabled bool
}

// NewPublisher dials url and declares the durable topic exchange and
// queue. If any step fails, it returns a disabled Publisher (not an error)
// so startup can proceed without the bus.
func NewPublisher(url string, logger *zap.SugaredLogger) *Publisher {
	p := &Publisher{logger: logger, url: url}

	if err := p.connect(); err != nil {
		logger.Warnw("analytics publisher disabled: bus unavailable at startup", "error", err)
		return p
	}
	return p
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.enabled = true
	p.mu.Unlock()

	return nil
}

// Publish serialises event and enqueues it on the exchange. Per §4.6, every
// failure mode here — connection lost, channel closed, serialisation error,
// the bus never having come up at all — is logged at warning and swallowed.
// The redirect hot path that schedules this call must never observe it.
func (p *Publisher) Publish(ctx context.Context, event ClickEvent) {
	p.mu.Lock()
	enabled := p.enabled
	channel := p.channel
	p.mu.Unlock()

	if !enabled {
		p.logger.Warnw("dropping click event: publisher disabled", "code", event.Code)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warnw("dropping click event: marshal failed", "code", event.Code, "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = channel.PublishWithContext(publishCtx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.logger.Warnw("dropping click event: publish failed", "code", event.Code, "error", err)
		p.markDisabledAndRetryConnect()
	}
}

// markDisabledAndRetryConnect flips the publisher to disabled and kicks off
// a background reconnect attempt, since the application layer does not
// buffer or retry individual events (§4.6) but should recover the
// connection for future publishes.
func (p *Publisher) markDisabledAndRetryConnect() {
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()

	go func() {
		if err := p.connect(); err != nil {
			p.logger.Warnw("analytics publisher reconnect failed", "error", err)
		} else {
			p.logger.Infow("analytics publisher reconnected")
		}
	}()
}

// Close tears down the connection, best-effort.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.enabled = false
}
