package weather

import (
	"context"

	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
)

// ReadingTransformer is a MessageTransformer that decodes and validates a raw
// broker payload into a Reading. Validation failures are wrapped as
// unprocessable so the pipeline Acks and discards the message instead of
// redelivering a payload that will always fail identically.
func ReadingTransformer(_ context.Context, msg *messagepipeline.Message) (*Reading, bool, error) {
	reading, err := ParseReading(msg.Payload)
	if err != nil {
		return nil, false, messagepipeline.AsUnprocessable(err)
	}
	return reading, false, nil
}
