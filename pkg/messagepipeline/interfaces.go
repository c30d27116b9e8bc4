package messagepipeline

import (
	"context"
)

// ====================================================================================
// This file defines the core interfaces and function types for building a dataflow
// pipeline. It outlines the contracts for consuming, transforming, and processing
// messages.
// ====================================================================================

// --- Stage 1: Consumer ---

// MessageConsumer defines the interface for a message source (e.g., an AMQP
// queue). It is responsible for fetching messages and handing them off to the
// pipeline.
type MessageConsumer interface {
	// Messages returns a read-only channel from which pipeline workers will receive messages.
	Messages() <-chan Message
	// Start begins the consumption process.
	Start(ctx context.Context) error
	// Stop gracefully ceases message consumption and waits for background tasks to finish.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// --- Stage 2: Transformer ---

// MessageTransformer defines a function that transforms a generic `Message` into
// a new, specific, structured payload of type T.
//
// The 'skip' return value can be set to true to signal that this message should
// be acknowledged and not processed further, effectively filtering it from the
// pipeline.
//
// An error wrapped by AsUnprocessable marks the message as permanently invalid:
// the service logs it and Acks so the broker discards it. Any other error is
// treated as transient and the message is Nacked for redelivery.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// --- Stage 3: Processor ---

// StreamProcessor defines the contract for an endpoint that handles transformed
// messages of type T one by one. The same unprocessable-versus-transient error
// convention as MessageTransformer applies to its return value.
type StreamProcessor[T any] func(ctx context.Context, original Message, payload *T) error

// --- Sink: Publisher ---

// Publisher defines a generic, direct publisher towards a message broker.
type Publisher interface {
	// Publish sends a single payload. Implementations are expected to retry
	// transient broker failures with backoff, bounded by the context.
	Publish(ctx context.Context, payload []byte, attributes map[string]string) error
	// Stop flushes any pending messages and releases the broker connection.
	Stop(ctx context.Context) error
}
