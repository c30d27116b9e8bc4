package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Validation failure kinds. Each rejected payload maps to exactly one of
// ErrMalformedPayload, ErrInvalidTimestamp, or an OutOfRangeError.
var (
	// ErrMalformedPayload marks a payload that does not decode into the three
	// expected fields.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidTimestamp marks a timestamp that does not parse as an absolute
	// instant.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// OutOfRangeError reports a numeric field outside its valid closed range.
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %.2f outside valid range [%.2f, %.2f]", e.Field, e.Value, e.Min, e.Max)
}

// wireReading mirrors the wire payload with pointer fields so missing keys can
// be distinguished from zero values. Unknown extra fields are ignored.
type wireReading struct {
	Timestamp   *string  `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// ParseReading validates a raw wire payload and returns the decoded Reading.
// It is pure and total: every input yields either a Reading or exactly one
// validation error, checked in order: payload shape, timestamp, temperature
// range, humidity range.
func ParseReading(payload []byte) (*Reading, error) {
	var wire wireReading
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if wire.Timestamp == nil || wire.Temperature == nil || wire.Humidity == nil {
		return nil, fmt.Errorf("%w: missing field(s)%s%s%s", ErrMalformedPayload,
			missing(" timestamp", wire.Timestamp == nil),
			missing(" temperature", wire.Temperature == nil),
			missing(" humidity", wire.Humidity == nil))
	}

	ts, err := time.Parse(time.RFC3339, *wire.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, *wire.Timestamp)
	}

	if *wire.Temperature < MinTemperature || *wire.Temperature > MaxTemperature {
		return nil, &OutOfRangeError{Field: "temperature", Value: *wire.Temperature, Min: MinTemperature, Max: MaxTemperature}
	}
	if *wire.Humidity < MinHumidity || *wire.Humidity > MaxHumidity {
		return nil, &OutOfRangeError{Field: "humidity", Value: *wire.Humidity, Min: MinHumidity, Max: MaxHumidity}
	}

	return &Reading{
		Timestamp:   ts.UTC(),
		Temperature: *wire.Temperature,
		Humidity:    *wire.Humidity,
	}, nil
}

func missing(name string, isMissing bool) string {
	if isMissing {
		return name
	}
	return ""
}
