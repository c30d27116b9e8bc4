package messagepipeline

import (
	"time"
)

// Message is the canonical, internal representation of an event flowing through
// the pipeline. It carries the raw broker payload together with the
// acknowledgment handles of the underlying delivery.
type Message struct {
	// MessageData contains the core payload and broker-assigned metadata.
	MessageData

	// Attributes holds transport metadata (e.g., AMQP routing key, content type).
	Attributes map[string]string

	// Ack signals that processing finished and the message can be permanently
	// removed from the source queue. It must also be called for messages that
	// are permanently unprocessable, so the broker never redelivers them.
	Ack func()

	// Nack signals that processing failed transiently and the message should be
	// re-queued for redelivery.
	Nack func()
}

// MessageData holds the essential payload of a message.
type MessageData struct {
	// ID is the unique identifier for the message from the source broker.
	ID string `json:"id"`

	// Payload is the raw byte content of the message.
	Payload []byte `json:"payload"`

	// PublishTime is the timestamp when the message was originally published.
	PublishTime time.Time `json:"publishTime"`
}
