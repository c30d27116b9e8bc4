package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer implements the messagepipeline.MessageConsumer interface for a
// durable AMQP queue. Deliveries are consumed with manual acknowledgment:
// a message stays on the queue until its Ack closure is called, so a crash
// mid-processing results in redelivery rather than data loss.
//
// On connection or channel loss the consumer reconnects with exponential
// backoff and resumes consumption; unacknowledged deliveries are requeued by
// the broker.
type Consumer struct {
	cfg        *ConnectionConfig
	logger     zerolog.Logger
	outputChan chan messagepipeline.Message
	doneChan   chan struct{}
	started    atomic.Bool
	stopOnce   sync.Once
	cancelRun  context.CancelFunc
}

// NewConsumer creates a new Consumer. It does not connect until Start is called.
func NewConsumer(cfg *ConnectionConfig, logger zerolog.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("AMQP broker URL is required")
	}
	buffer := cfg.PrefetchCount
	if buffer <= 0 {
		buffer = 1
	}
	return &Consumer{
		cfg:        cfg,
		logger:     logger.With().Str("component", "AmqpConsumer").Str("queue", cfg.QueueName).Logger(),
		outputChan: make(chan messagepipeline.Message, buffer),
		doneChan:   make(chan struct{}),
	}, nil
}

// Messages returns the read-only channel from which messages can be consumed.
func (c *Consumer) Messages() <-chan messagepipeline.Message {
	return c.outputChan
}

// Start connects to the broker and begins consuming. The initial connection is
// made synchronously with a bounded number of attempts so an unreachable
// broker at startup fails fast; later connection losses reconnect until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel

	conn, deliveries, err := c.connect(runCtx, startupConnectRetries)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	c.logger.Info().Msg("Connected to broker, consuming from queue.")

	c.started.Store(true)
	go c.run(runCtx, conn, deliveries)
	return nil
}

// Stop gracefully ceases message consumption and waits for the consume
// goroutine to finish, respecting the context's deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping AMQP consumer...")
		if c.cancelRun != nil {
			c.cancelRun()
		}
		if !c.started.Load() {
			close(c.outputChan)
			close(c.doneChan)
		}
	})

	select {
	case <-c.doneChan:
		c.logger.Info().Msg("AMQP consumer stopped.")
		return nil
	case <-ctx.Done():
		c.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for AMQP consumer to stop.")
		return ctx.Err()
	}
}

// Done returns a channel that is closed when the consumer has fully stopped.
func (c *Consumer) Done() <-chan struct{} {
	return c.doneChan
}

// run forwards deliveries to the output channel, reconnecting on connection
// loss, until the context is cancelled.
func (c *Consumer) run(ctx context.Context, conn *amqp.Connection, deliveries <-chan amqp.Delivery) {
	defer close(c.doneChan)
	defer close(c.outputChan)

	for {
		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		c.consumeLoop(ctx, deliveries, closed)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		c.logger.Warn().Msg("Broker connection lost, reconnecting...")
		var err error
		conn, deliveries, err = c.connect(ctx, 0)
		if err != nil {
			// Only happens when the context is cancelled mid-reconnect.
			return
		}
		c.logger.Info().Msg("Reconnected to broker, resuming consumption.")
	}
}

// consumeLoop forwards deliveries until the context is cancelled or the
// connection drops.
func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error) {
	for {
		select {
		case <-ctx.Done():
			return
		case amqpErr := <-closed:
			if amqpErr != nil {
				c.logger.Warn().Str("reason", amqpErr.Reason).Int("code", amqpErr.Code).
					Msg("Broker closed the connection.")
			}
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn().Msg("Delivery channel closed by broker.")
				return
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery wraps one AMQP delivery as a pipeline Message. The Ack/Nack
// closures settle the delivery on the broker; Nack requeues for redelivery.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	id := d.MessageId
	if id == "" {
		id = uuid.NewString()
	}

	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{
			ID:          id,
			Payload:     d.Body,
			PublishTime: d.Timestamp,
		},
		Attributes: map[string]string{
			"routing_key": d.RoutingKey,
			"redelivered": strconv.FormatBool(d.Redelivered),
		},
		Ack: func() {
			if err := d.Ack(false); err != nil {
				c.logger.Warn().Err(err).Str("msg_id", id).Msg("Failed to ack delivery.")
			}
		},
		Nack: func() {
			if err := d.Nack(false, true); err != nil {
				c.logger.Warn().Err(err).Str("msg_id", id).Msg("Failed to nack delivery.")
			}
		},
	}

	select {
	case c.outputChan <- msg:
	case <-ctx.Done():
		// Shutting down: leave the delivery unacknowledged so the broker
		// requeues it once the connection closes.
		c.logger.Warn().Str("msg_id", id).Msg("Consumer stopping, abandoning delivery for redelivery.")
	}
}

// connect dials the broker, declares the topology, and starts consuming,
// retrying with backoff according to maxRetries (0 means until ctx cancel).
func (c *Consumer) connect(ctx context.Context, maxRetries uint64) (*amqp.Connection, <-chan amqp.Delivery, error) {
	var (
		conn       *amqp.Connection
		deliveries <-chan amqp.Delivery
	)

	operation := func() error {
		var err error
		conn, err = amqp.Dial(c.cfg.URL)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Broker dial failed, will retry.")
			return err
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("open channel: %w", err)
		}

		if err = declareTopology(ch, c.cfg); err != nil {
			_ = conn.Close()
			return err
		}

		deliveries, err = ch.Consume(
			c.cfg.QueueName,
			"",    // consumer tag, broker-generated
			false, // autoAck: acknowledgment is owned by the pipeline
			false, // exclusive: allow competing consumers
			false, // noLocal
			false, // noWait
			nil,
		)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("start consuming: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(operation, newBackOff(ctx, maxRetries)); err != nil {
		return nil, nil, err
	}
	return conn, deliveries, nil
}
