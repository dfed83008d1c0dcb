package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8700", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.History.Max)
	assert.Equal(t, 10, cfg.Suggest.Limit)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WARP_HISTORY_MAX", "50")
	t.Setenv("WARP_SUGGEST_LIMIT", "5")
	t.Setenv("LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 50, cfg.History.Max)
	assert.Equal(t, 5, cfg.Suggest.Limit)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadRejectsNonPositiveHistoryBound(t *testing.T) {
	t.Setenv("WARP_HISTORY_MAX", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WARP_HISTORY_MAX")
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("WARP_HISTORY_MAX", "not-a-number")
	cfg := LoadOrDefault()
	assert.Equal(t, 1000, cfg.History.Max)
}
