package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology idempotently declares the exchange, queue, and binding.
// Both consumer and publisher declare the full topology, so a reading
// published before any consumer has ever started still lands in the durable
// queue instead of being dropped as unroutable.
func declareTopology(ch *amqp.Channel, cfg *ConnectionConfig) error {
	err := ch.ExchangeDeclare(
		cfg.ExchangeName,
		cfg.ExchangeType,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %q: %w", cfg.ExchangeName, err)
	}

	_, err = ch.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", cfg.QueueName, err)
	}

	if err = ch.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %q to exchange %q: %w", cfg.QueueName, cfg.ExchangeName, err)
	}

	if cfg.PrefetchCount > 0 {
		if err = ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}
	return nil
}
