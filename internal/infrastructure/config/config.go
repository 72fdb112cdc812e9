package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database  DatabaseConfig  `koanf:"database"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// AnalyzerConfig tunes the detection and forecasting runs
type AnalyzerConfig struct {
	ZScoreThreshold        float64 `koanf:"zscore_threshold"`
	PercentChangeThreshold float64 `koanf:"percent_change_threshold"`
	PositionThreshold      float64 `koanf:"position_threshold"`
	ForecastHorizonDays    int     `koanf:"forecast_horizon_days"`

	// ScansPerSecond bounds how fast the batch loop walks the client list
	ScansPerSecond float64 `koanf:"scans_per_second"`
	ScanBurst      int     `koanf:"scan_burst"`
}

type MetricsConfig struct {
	Port int `koanf:"port"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
		Analyzer: AnalyzerConfig{
			ZScoreThreshold:        2.5,
			PercentChangeThreshold: 30,
			PositionThreshold:      5,
			ForecastHorizonDays:    30,
			ScansPerSecond:         2,
			ScanBurst:              5,
		},
		Metrics: MetricsConfig{
			Port: 9091,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("RANKWISE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "RANKWISE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
