package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Floor struct {
		RefreshInterval  time.Duration `yaml:"refresh_interval"`
		AutoStopInterval time.Duration `yaml:"auto_stop_interval"`
		TickInterval     time.Duration `yaml:"tick_interval"`
		AutoStopGrace    time.Duration `yaml:"auto_stop_grace"`
	} `yaml:"floor"`
	Billing struct {
		Denominations []string `yaml:"denominations"`
	} `yaml:"billing"`
	Events struct {
		Enabled    bool   `yaml:"enabled"`
		StreamName string `yaml:"stream_name"`
		Subject    string `yaml:"subject_prefix"`
	} `yaml:"events"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Floor.RefreshInterval = 10 * time.Second
	cfg.Floor.AutoStopInterval = 30 * time.Second
	cfg.Floor.TickInterval = time.Second
	cfg.Floor.AutoStopGrace = 5 * time.Second
	return &cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig overlays the YAML file at path onto the defaults. A missing
// file keeps the defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Floor.RefreshInterval <= 0 || config.Floor.AutoStopInterval <= 0 || config.Floor.TickInterval <= 0 {
		return nil, fmt.Errorf("floor intervals must be positive")
	}
	if config.Floor.AutoStopGrace < 0 {
		return nil, fmt.Errorf("auto_stop_grace must not be negative")
	}

	return config, nil
}

// denominations parses the configured cash denominations. Empty means the
// billing defaults.
func (c *Config) denominations() ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(c.Billing.Denominations))
	for _, raw := range c.Billing.Denominations {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid denomination %q: %w", raw, err)
		}
		if !d.IsPositive() {
			return nil, fmt.Errorf("denomination %q must be positive", raw)
		}
		out = append(out, d)
	}
	return out, nil
}
