package config

import (
	"strings"
	"time"
)

// Protocol defaults shared with clients. These mirror the values the
// original deployment shipped with; clients assume the same token and
// sizing unless reconfigured on both ends.
const (
	DefaultAppToken     = "A12B0698P"
	DefaultPort         = 10076
	DefaultMaxClients   = 100
	DefaultMaxDgramSize = 512
	DefaultPacketMaxAge = 500 * time.Millisecond

	DefaultNoResponseTimeout = 30 * time.Second
	DefaultClientTimeout     = 120 * time.Second
	DefaultCodeLen           = 5
	DefaultReconnectCodeLen  = 4
	DefaultLobbyTime         = 36000 * time.Second
	DefaultPlayTime          = 45 * time.Second
	DefaultPlayStateTime     = 180 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyGameDefaults(&cfg.Game)
	applyShutdownTimeoutDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyServerDefaults sets UDP listener and protocol defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.BindIP == "" {
		cfg.BindIP = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.AppToken == "" {
		cfg.AppToken = DefaultAppToken
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.MaxDgramSize == 0 {
		cfg.MaxDgramSize = DefaultMaxDgramSize
	}
	if cfg.PacketMaxAge == 0 {
		cfg.PacketMaxAge = DefaultPacketMaxAge
	}
	if cfg.ConnectBurst == 0 {
		cfg.ConnectBurst = 20
	}
	// ConnectRate zero means no admission rate limiting
}

// applyGameDefaults sets game timer and code defaults.
func applyGameDefaults(cfg *GameConfig) {
	if cfg.NoResponseTimeout == 0 {
		cfg.NoResponseTimeout = DefaultNoResponseTimeout
	}
	if cfg.ClientTimeout == 0 {
		cfg.ClientTimeout = DefaultClientTimeout
	}
	if cfg.CodeLen == 0 {
		cfg.CodeLen = DefaultCodeLen
	}
	if cfg.ReconnectCodeLen == 0 {
		cfg.ReconnectCodeLen = DefaultReconnectCodeLen
	}
	if cfg.LobbyTime == 0 {
		cfg.LobbyTime = DefaultLobbyTime
	}
	if cfg.PlayTime == 0 {
		cfg.PlayTime = DefaultPlayTime
	}
	if cfg.PlayStateTime == 0 {
		cfg.PlayStateTime = DefaultPlayStateTime
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
