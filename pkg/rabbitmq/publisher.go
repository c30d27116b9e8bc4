package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher implements the messagepipeline.Publisher interface for AMQP. All
// messages are published persistent to a durable exchange, so they survive a
// broker restart while queued. Publish retries transient broker failures with
// backoff instead of dropping the payload.
type Publisher struct {
	cfg    *ConnectionConfig
	logger zerolog.Logger

	// dialFn dials the broker; replaced in tests to exercise the redial path.
	dialFn func(url string) (*amqp.Connection, error)

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewPublisher connects to the broker and declares the topology. The initial
// connection is retried a bounded number of times; failure to connect is a
// startup error for the caller to treat as fatal.
func NewPublisher(ctx context.Context, cfg *ConnectionConfig, logger zerolog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("AMQP broker URL is required")
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger.With().Str("component", "AmqpPublisher").Str("exchange", cfg.ExchangeName).Logger(),
		dialFn: amqp.Dial,
	}

	operation := func() error {
		if err := p.dial(); err != nil {
			p.logger.Warn().Err(err).Msg("Broker dial failed, will retry.")
			return err
		}
		return nil
	}
	if err := backoff.Retry(operation, newBackOff(ctx, startupConnectRetries)); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	p.logger.Info().Msg("AMQP publisher connected.")
	return p, nil
}

// Publish sends one persistent message to the exchange, retrying with backoff
// until it succeeds, the publisher is stopped, or ctx is cancelled.
func (p *Publisher) Publish(ctx context.Context, payload []byte, attributes map[string]string) error {
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         payload,
		Headers:      toTable(attributes),
	}

	operation := func() error {
		ch, err := p.channel()
		if err != nil {
			return err
		}
		if err := ch.PublishWithContext(ctx, p.cfg.ExchangeName, p.cfg.RoutingKey, false, false, publishing); err != nil {
			p.logger.Warn().Err(err).Msg("Publish failed, reconnecting and retrying.")
			p.invalidate()
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, newBackOff(ctx, 0)); err != nil {
		return fmt.Errorf("publish to exchange %q: %w", p.cfg.ExchangeName, err)
	}
	return nil
}

// Stop closes the broker connection. Further Publish calls fail permanently.
func (p *Publisher) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.logger.Info().Msg("AMQP publisher stopped.")
	return nil
}

// channel returns a live channel, dialing a fresh connection if the previous
// one was lost. A stopped publisher returns a permanent error so retry loops
// terminate.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, backoff.Permanent(fmt.Errorf("publisher is stopped"))
	}
	if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	if err := p.dialLocked(); err != nil {
		return nil, err
	}
	return p.ch, nil
}

func (p *Publisher) dial() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dialLocked()
}

// dialLocked performs a single connection attempt. Callers hold p.mu.
func (p *Publisher) dialLocked() error {
	conn, err := p.dialFn(p.cfg.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err = declareTopology(ch, p.cfg); err != nil {
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// invalidate discards the current connection after a failed publish so the
// next attempt dials afresh.
func (p *Publisher) invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func toTable(attributes map[string]string) amqp.Table {
	if len(attributes) == 0 {
		return nil
	}
	table := make(amqp.Table, len(attributes))
	for k, v := range attributes {
		table[k] = v
	}
	return table
}
