package weather_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
	"github.com/illmade-knight/go-weather-pipeline/pkg/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading_Valid(t *testing.T) {
	testCases := []struct {
		name        string
		temperature float64
		humidity    float64
	}{
		{"typical", 21.35, 48.2},
		{"temperature at lower bound", -50.0, 50.0},
		{"temperature at upper bound", 60.0, 50.0},
		{"humidity at lower bound", 20.0, 0.0},
		{"humidity at upper bound", 20.0, 100.0},
		{"freezing", -10.5, 92.4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := fmt.Sprintf(`{"timestamp":"2025-03-14T09:26:53Z","temperature":%v,"humidity":%v}`,
				tc.temperature, tc.humidity)

			reading, err := weather.ParseReading([]byte(payload))
			require.NoError(t, err)

			assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), reading.Timestamp)
			assert.Equal(t, tc.temperature, reading.Temperature)
			assert.Equal(t, tc.humidity, reading.Humidity)
		})
	}
}

func TestParseReading_NormalizesTimezoneToUTC(t *testing.T) {
	payload := `{"timestamp":"2025-03-14T10:26:53+01:00","temperature":20,"humidity":50}`

	reading, err := weather.ParseReading([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), reading.Timestamp)
}

func TestParseReading_IgnoresUnknownFields(t *testing.T) {
	// Older stations also report irradiance; it is not part of a Reading.
	payload := `{"timestamp":"2025-03-14T09:26:53Z","temperature":20,"humidity":50,"irradiance":312.5}`

	reading, err := weather.ParseReading([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 20.0, reading.Temperature)
}

func TestParseReading_MalformedPayload(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{"not json", `not json at all`},
		{"missing temperature", `{"timestamp":"2025-03-14T09:26:53Z","humidity":50}`},
		{"missing humidity", `{"timestamp":"2025-03-14T09:26:53Z","temperature":20}`},
		{"missing timestamp", `{"temperature":20,"humidity":50}`},
		{"empty object", `{}`},
		{"temperature not numeric", `{"timestamp":"2025-03-14T09:26:53Z","temperature":"warm","humidity":50}`},
		{"truncated", `{"timestamp":"2025-03-14T09:26:53Z","temperature":20,`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reading, err := weather.ParseReading([]byte(tc.payload))
			require.Nil(t, reading)
			assert.ErrorIs(t, err, weather.ErrMalformedPayload)
		})
	}
}

func TestParseReading_InvalidTimestamp(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{"not a timestamp", `{"timestamp":"yesterday","temperature":20,"humidity":50}`},
		{"date only", `{"timestamp":"2025-03-14","temperature":20,"humidity":50}`},
		{"empty string", `{"timestamp":"","temperature":20,"humidity":50}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reading, err := weather.ParseReading([]byte(tc.payload))
			require.Nil(t, reading)
			assert.ErrorIs(t, err, weather.ErrInvalidTimestamp)
		})
	}
}

func TestParseReading_OutOfRange(t *testing.T) {
	testCases := []struct {
		name      string
		payload   string
		wantField string
		wantValue float64
	}{
		{"temperature too high", `{"timestamp":"2025-03-14T09:26:53Z","temperature":150.0,"humidity":50}`, "temperature", 150.0},
		{"temperature too low", `{"timestamp":"2025-03-14T09:26:53Z","temperature":-50.01,"humidity":50}`, "temperature", -50.01},
		{"humidity too high", `{"timestamp":"2025-03-14T09:26:53Z","temperature":20,"humidity":120.0}`, "humidity", 120.0},
		{"humidity negative", `{"timestamp":"2025-03-14T09:26:53Z","temperature":20,"humidity":-0.1}`, "humidity", -0.1},
		// Rules apply in order: an unparseable timestamp wins over a bad range,
		// and a bad temperature wins over a bad humidity.
		{"temperature checked before humidity", `{"timestamp":"2025-03-14T09:26:53Z","temperature":150.0,"humidity":120.0}`, "temperature", 150.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reading, err := weather.ParseReading([]byte(tc.payload))
			require.Nil(t, reading)

			var oorErr *weather.OutOfRangeError
			require.True(t, errors.As(err, &oorErr), "expected OutOfRangeError, got %v", err)
			assert.Equal(t, tc.wantField, oorErr.Field)
			assert.Equal(t, tc.wantValue, oorErr.Value)
		})
	}
}

func TestReadingTransformer(t *testing.T) {
	t.Run("valid payload yields reading", func(t *testing.T) {
		msg := &messagepipeline.Message{
			MessageData: messagepipeline.MessageData{
				ID:      "msg-1",
				Payload: []byte(`{"timestamp":"2025-03-14T09:26:53Z","temperature":21.5,"humidity":48.0}`),
			},
		}

		reading, skip, err := weather.ReadingTransformer(context.Background(), msg)
		require.NoError(t, err)
		assert.False(t, skip)
		assert.Equal(t, 21.5, reading.Temperature)
		assert.Equal(t, 48.0, reading.Humidity)
	})

	t.Run("invalid payload is unprocessable", func(t *testing.T) {
		msg := &messagepipeline.Message{
			MessageData: messagepipeline.MessageData{
				ID:      "msg-2",
				Payload: []byte(`{"timestamp":"2025-03-14T09:26:53Z","temperature":150.0,"humidity":48.0}`),
			},
		}

		reading, skip, err := weather.ReadingTransformer(context.Background(), msg)
		require.Nil(t, reading)
		assert.False(t, skip)
		require.Error(t, err)
		assert.True(t, messagepipeline.IsUnprocessable(err),
			"validation failures must not be retried")
	})
}
