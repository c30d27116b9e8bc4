package pgstore

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
	"github.com/illmade-knight/go-weather-pipeline/pkg/weather"
	"github.com/rs/zerolog"
)

// NewWeatherService assembles the consume → validate → persist pipeline: it
// wraps the given inserter in a stream processor that persists each validated
// reading and logs a summary, and wires it into a StreamingService.
//
// Acknowledgment is handled by the service according to the outcome: persisted
// readings and permanently rejected messages are Acked; transient failures are
// Nacked, so at-least-once delivery may produce duplicate rows after a crash —
// an accepted limitation of this pipeline.
func NewWeatherService(
	cfg messagepipeline.StreamingServiceConfig,
	consumer messagepipeline.MessageConsumer,
	inserter ReadingInserter,
	transformer messagepipeline.MessageTransformer[weather.Reading],
	logger zerolog.Logger,
) (*messagepipeline.StreamingService[weather.Reading], error) {

	processor := func(ctx context.Context, original messagepipeline.Message, reading *weather.Reading) error {
		if err := inserter.Insert(ctx, reading); err != nil {
			return err
		}
		logger.Info().
			Str("msg_id", original.ID).
			Time("timestamp", reading.Timestamp).
			Float64("temperature", reading.Temperature).
			Float64("humidity", reading.Humidity).
			Msg("Reading persisted.")
		return nil
	}

	service, err := messagepipeline.NewStreamingService[weather.Reading](cfg, consumer, transformer, processor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service for pgstore: %w", err)
	}
	return service, nil
}
