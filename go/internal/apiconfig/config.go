// Package apiconfig reads the floor service connection settings.
package apiconfig

import (
	"os"
	"strings"
	"time"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
)

// Config holds floor service connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewConfigFromEnv reads FLOOR_API_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	timeout, err := time.ParseDuration(getEnv("FLOOR_API_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}

	return Config{
		BaseURL: strings.TrimRight(getEnv("FLOOR_API_URL", "http://localhost:8000"), "/"),
		Token:   os.Getenv("FLOOR_API_TOKEN"),
		Timeout: timeout,
	}
}

// Validate reports settings the client cannot start with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return floorerr.Invalid("FLOOR_API_URL", "required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return floorerr.Invalid("FLOOR_API_URL", "must be an http(s) URL")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
