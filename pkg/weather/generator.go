package weather

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// GeneratorConfig holds configuration for the simulated weather station.
type GeneratorConfig struct {
	// Interval is the cadence at which readings are produced.
	Interval time.Duration
	// InvalidRatio is the fraction of ticks that deliberately emit an
	// out-of-range value, so downstream validation is exercised end to end.
	InvalidRatio float64
}

// NewGeneratorDefaults provides a config with sensible defaults, overridable
// via environment variables.
func NewGeneratorDefaults() *GeneratorConfig {
	cfg := &GeneratorConfig{
		Interval:     time.Second,
		InvalidRatio: 0.05,
	}
	if iv := os.Getenv("PRODUCER_INTERVAL"); iv != "" {
		if val, err := time.ParseDuration(iv); err == nil && val > 0 {
			cfg.Interval = val
		}
	}
	if ir := os.Getenv("PRODUCER_INVALID_RATIO"); ir != "" {
		if val, err := strconv.ParseFloat(ir, 64); err == nil && val >= 0 && val <= 1 {
			cfg.InvalidRatio = val
		}
	}
	return cfg
}

// Maximum per-tick variation of the simulated conditions.
const (
	deltaTemperature = 0.2
	deltaHumidity    = 1.5
)

// Physical clamps for the simulation's random walk. Narrower than the valid
// reading ranges, so only deliberate glitches produce invalid readings.
const (
	simMinTemperature = -10.0
	simMaxTemperature = 40.0
)

// Generator simulates a weather station: a random walk over temperature and
// humidity, sampled at a fixed cadence and published as durable messages.
type Generator struct {
	cfg       *GeneratorConfig
	publisher messagepipeline.Publisher
	logger    zerolog.Logger
	rng       *rand.Rand

	temperature float64
	humidity    float64
}

// NewGenerator creates a Generator seeded at plausible initial conditions.
func NewGenerator(cfg *GeneratorConfig, publisher messagepipeline.Publisher, logger zerolog.Logger) *Generator {
	return &Generator{
		cfg:         cfg,
		publisher:   publisher,
		logger:      logger.With().Str("component", "Generator").Logger(),
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		temperature: 20.0,
		humidity:    50.0,
	}
}

// Next advances the random walk and returns the reading for the given instant.
// A fraction of readings (GeneratorConfig.InvalidRatio) carries a sensor-glitch
// value outside the valid range; those are expected to be rejected downstream.
func (g *Generator) Next(now time.Time) Reading {
	g.temperature = clamp(g.temperature+g.jitter(deltaTemperature), simMinTemperature, simMaxTemperature)
	g.humidity = clamp(g.humidity+g.jitter(deltaHumidity), MinHumidity, MaxHumidity)

	reading := Reading{
		Timestamp:   now.UTC(),
		Temperature: round2(g.temperature),
		Humidity:    round2(g.humidity),
	}

	if g.rng.Float64() < g.cfg.InvalidRatio {
		// Simulated sensor glitch.
		if g.rng.IntN(2) == 0 {
			reading.Temperature = round2(MaxTemperature + 90 + g.jitter(10))
		} else {
			reading.Humidity = round2(MaxHumidity + 20 + g.jitter(10))
		}
	}
	return reading
}

// Run produces and publishes one reading per tick until the context is
// cancelled. Publishing blocks while the broker is unreachable (the publisher
// retries with backoff), so readings are paused rather than silently dropped
// during an outage. Publish failures never crash the producer.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info().Dur("interval", g.cfg.Interval).Float64("invalid_ratio", g.cfg.InvalidRatio).
		Msg("Starting reading generator...")

	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info().Msg("Reading generator stopped.")
			return nil
		case now := <-ticker.C:
			g.emit(ctx, now)
		}
	}
}

func (g *Generator) emit(ctx context.Context, now time.Time) {
	reading := g.Next(now)

	payload, err := json.Marshal(reading)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to marshal reading, skipping tick.")
		return
	}

	if err := g.publisher.Publish(ctx, payload, nil); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to publish reading.")
		return
	}

	g.logger.Debug().
		Time("timestamp", reading.Timestamp).
		Float64("temperature", reading.Temperature).
		Float64("humidity", reading.Humidity).
		Msg("Reading published.")
}

func (g *Generator) jitter(delta float64) float64 {
	return (g.rng.Float64()*2 - 1) * delta
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
