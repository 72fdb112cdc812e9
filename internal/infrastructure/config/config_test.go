package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.InDelta(t, 2.5, cfg.Analyzer.ZScoreThreshold, 1e-9)
	assert.InDelta(t, 30.0, cfg.Analyzer.PercentChangeThreshold, 1e-9)
	assert.Equal(t, 30, cfg.Analyzer.ForecastHorizonDays)
	assert.Equal(t, 9091, cfg.Metrics.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RANKWISE_METRICS_PORT", "9999")
	t.Setenv("RANKWISE_TELEMETRY_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Metrics.Port)
	assert.True(t, cfg.Telemetry.Enabled)
}
