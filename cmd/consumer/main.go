// Binary consumer drains weather readings from RabbitMQ, validates them, and
// persists accepted readings to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
	"github.com/illmade-knight/go-weather-pipeline/pkg/microservice"
	"github.com/illmade-knight/go-weather-pipeline/pkg/pgstore"
	"github.com/illmade-knight/go-weather-pipeline/pkg/rabbitmq"
	"github.com/illmade-knight/go-weather-pipeline/pkg/weather"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables only.")
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "weather-consumer").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	amqpCfg, err := rabbitmq.LoadConnectionConfigFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load RabbitMQ configuration.")
	}
	pgCfg, err := pgstore.LoadConfigFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load PostgreSQL configuration.")
	}

	healthPort := os.Getenv("HEALTH_PORT")
	if healthPort == "" {
		healthPort = ":8082"
	}
	healthServer := microservice.NewBaseServer(logger, healthPort)
	if err := healthServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start health server.")
	}

	// Dependencies that never come up within the bounded startup retries are
	// fatal; runtime disconnects are handled by the consumer's reconnect loop.
	db, err := pgstore.NewPostgresClient(ctx, pgCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL.")
	}
	defer func() {
		_ = db.Close()
	}()

	// NewPostgresInserter bootstraps the schema before any message is consumed.
	inserter, err := pgstore.NewPostgresInserter(ctx, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create reading inserter.")
	}

	consumer, err := rabbitmq.NewConsumer(amqpCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create RabbitMQ consumer.")
	}

	numWorkers := 1
	if v := os.Getenv("CONSUMER_NUM_WORKERS"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			numWorkers = n
		}
	}

	service, err := pgstore.NewWeatherService(
		messagepipeline.StreamingServiceConfig{NumWorkers: numWorkers},
		consumer,
		inserter,
		weather.ReadingTransformer,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to assemble pipeline.")
	}

	if err := service.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start pipeline.")
	}
	logger.Info().
		Str("queue", amqpCfg.QueueName).
		Int("num_workers", numWorkers).
		Msg("Consumer started, waiting for readings.")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during pipeline shutdown.")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping health server.")
	}
	logger.Info().Msg("Consumer shut down cleanly.")
}
