// Package weather defines the weather reading domain type, the validation
// rules applied to readings arriving off the wire, and a generator that
// simulates a weather station.
package weather

import (
	"time"
)

// Valid closed ranges for reading fields. A reading with a field outside its
// range is rejected, both here and by the database CHECK constraints.
const (
	MinTemperature = -50.0
	MaxTemperature = 60.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// Reading is a single validated weather observation. On the wire it is encoded
// as JSON with an ISO-8601 timestamp string and numeric temperature/humidity.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}
