package pgstore

import (
	"fmt"
	"net/url"
	"os"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// LoadConfigFromEnv reads the POSTGRES_* environment variables. Host,
// database, user, and password are mandatory; a missing value is a fatal
// configuration error for the caller.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     getenvDefault("POSTGRES_PORT", "5432"),
		Database: os.Getenv("POSTGRES_DB"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		SSLMode:  getenvDefault("POSTGRES_SSLMODE", "disable"),
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("POSTGRES_HOST environment variable not set")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("POSTGRES_DB environment variable not set")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("POSTGRES_USER environment variable not set")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable not set")
	}
	return cfg, nil
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
