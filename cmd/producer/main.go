// Binary producer generates simulated weather readings and publishes them to
// RabbitMQ on a fixed cadence.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/illmade-knight/go-weather-pipeline/pkg/microservice"
	"github.com/illmade-knight/go-weather-pipeline/pkg/rabbitmq"
	"github.com/illmade-knight/go-weather-pipeline/pkg/weather"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables only.")
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "weather-producer").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	amqpCfg, err := rabbitmq.LoadConnectionConfigFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load RabbitMQ configuration.")
	}
	genCfg := weather.NewGeneratorDefaults()

	healthPort := os.Getenv("HEALTH_PORT")
	if healthPort == "" {
		healthPort = ":8081"
	}
	healthServer := microservice.NewBaseServer(logger, healthPort)
	if err := healthServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start health server.")
	}

	// A broker that never comes up within the bounded startup retries is fatal;
	// once connected, the publisher reconnects on its own.
	publisher, err := rabbitmq.NewPublisher(ctx, amqpCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to RabbitMQ.")
	}

	generator := weather.NewGenerator(genCfg, publisher, logger)

	logger.Info().
		Str("exchange", amqpCfg.ExchangeName).
		Str("routing_key", amqpCfg.RoutingKey).
		Msg("Producer started.")

	if err := generator.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Generator stopped with error.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping publisher.")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping health server.")
	}
	logger.Info().Msg("Producer shut down cleanly.")
}
