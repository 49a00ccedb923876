package observability

import (
	"time"

	"vocatio/internal/config"
)

// Settings holds the resolved observability configuration.
type Settings struct {
	ServiceName     string
	ServiceVersion  string
	ServiceInstance string
	Enabled         bool
	ConsoleOutput   bool
	PrettyPrint     bool
	SampleRate      float64
	Interval        time.Duration
	Prometheus      PrometheusConfig
	OTLP            config.OTLPConfig
	Custom          config.CustomMetricsConfig
}

// GetSettings creates observability settings from the loaded config.
func GetSettings(cfg *config.Config, version string) Settings {
	if cfg == nil {
		// Fallback to defaults if config not available
		return Settings{
			ServiceName:    "vocatio",
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Interval:       15 * time.Second,
			Prometheus:     GetPrometheusConfig(nil),
			Custom:         allCustomMetrics(),
		}
	}

	obs := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	sampleRate := obs.SampleRate
	if obs.Tracing.SampleRate > 0 {
		sampleRate = obs.Tracing.SampleRate
	}
	if !obs.Tracing.Enabled {
		sampleRate = 0
	}

	interval := obs.Metrics.CollectionInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return Settings{
		ServiceName:     obs.ServiceName,
		ServiceVersion:  serviceVersion,
		ServiceInstance: obs.ServiceInstance,
		Enabled:         obs.Enabled,
		ConsoleOutput:   obs.ConsoleOutput || obs.Console.Enabled,
		PrettyPrint:     obs.Console.PrettyPrint,
		SampleRate:      sampleRate,
		Interval:        interval,
		Prometheus:      GetPrometheusConfig(cfg),
		OTLP:            obs.OTLP,
		Custom:          obs.CustomMetrics,
	}
}

func allCustomMetrics() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		AIOperations: config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
		BusinessMetrics: config.BusinessMetricsConfig{
			Enabled:           true,
			TrackSuccessRates: true,
			TrackMatchScores:  true,
			TrackViolations:   true,
		},
		Infrastructure: config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true, TrackSessions: true},
	}
}
