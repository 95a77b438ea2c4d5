package apiconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("FLOOR_API_URL", "")
	t.Setenv("FLOOR_API_TOKEN", "")
	t.Setenv("FLOOR_API_TIMEOUT", "")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("FLOOR_API_URL", "https://floor.example/")
	t.Setenv("FLOOR_API_TOKEN", "secret")
	t.Setenv("FLOOR_API_TIMEOUT", "3s")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "https://floor.example", cfg.BaseURL)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestNewConfigFromEnvBadTimeout(t *testing.T) {
	t.Setenv("FLOOR_API_TIMEOUT", "soon")
	assert.Equal(t, 10*time.Second, NewConfigFromEnv().Timeout)
}

func TestValidateRejectsNonHTTP(t *testing.T) {
	err := Config{BaseURL: "ftp://floor"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, floorerr.ErrValidation))
}
