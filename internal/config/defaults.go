package config

import (
	"strings"
	"time"
)

// GetDefaultConfig returns a Config populated entirely with defaults.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
// Explicit values loaded from file or environment are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyClientDefaults(&cfg.Client)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:7890"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.IdleCloseTimeout == 0 {
		cfg.IdleCloseTimeout = 15 * time.Second
	}
	if cfg.OutbandQueueSize == 0 {
		cfg.OutbandQueueSize = 100
	}
	if cfg.ReserveMempool == 0 {
		cfg.ReserveMempool = 50
	}
	if cfg.MaxMethodNameLen == 0 {
		cfg.MaxMethodNameLen = 128
	}
	if cfg.MaxParameterCount == 0 {
		cfg.MaxParameterCount = 16
	}
	if cfg.InitialTableCapacity == 0 {
		cfg.InitialTableCapacity = 16
	}
	if cfg.SpinRetries == 0 {
		cfg.SpinRetries = 10
	}
	if cfg.MinSleep == 0 {
		cfg.MinSleep = 2 * time.Millisecond
	}
	if cfg.MaxSleep == 0 {
		cfg.MaxSleep = 256 * time.Millisecond
	}
}

func applyClientDefaults(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.StackBufferSize == 0 {
		cfg.StackBufferSize = 10 * 1024 // ~10 KB, avoids a heap allocation for small replies
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9090"
	}
}
