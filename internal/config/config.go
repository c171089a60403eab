// Package config loads and validates the nanorpc server and client
// configuration from file, environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top level nanorpc configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (NANORPC_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// The environment is read only when a configuration file is found; without
// one, Load returns the default values unchanged.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig controls the reactor, dispatcher, and connection lifecycle.
type ServerConfig struct {
	// ListenAddr is the host:port the reactor listens on.
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// Workers is the number of dispatch worker goroutines executing methods.
	// Default: 4
	Workers int `mapstructure:"workers" validate:"required,min=1" yaml:"workers"`

	// PollTimeout bounds how long the reactor blocks waiting for readiness
	// events before re-checking timers.
	// Default: 1s
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"required,gt=0" yaml:"poll_timeout"`

	// IdleCloseTimeout is how long a connection lingers before it is closed,
	// once its reply has been flushed or its request has failed to parse.
	// Grounded on MRPC_DEFAULT_TIMEOUT_CLOSE (15000ms) from the original runtime.
	// Default: 15s
	IdleCloseTimeout time.Duration `mapstructure:"idle_close_timeout" validate:"required,gt=0" yaml:"idle_close_timeout"`

	// OutbandQueueSize bounds how many queued responses idleDrain applies
	// to connections per reactor tick.
	// Grounded on MRPC_DEFAULT_OUTBAND_SIZE (100) from the original runtime.
	// Default: 100
	OutbandQueueSize int `mapstructure:"outband_queue_size" validate:"required,min=1" yaml:"outband_queue_size"`

	// ReserveMempool is the number of connection records held by the
	// connection slab's first page; each later page doubles in size.
	// Grounded on MRPC_DEFAULT_RESERVE_MEMPOOL (50) from the original runtime.
	// Default: 50
	ReserveMempool int `mapstructure:"reserve_mempool" validate:"required,min=1" yaml:"reserve_mempool"`

	// MaxMethodNameLen bounds the length of a method name accepted on the
	// wire, counted with room for a terminating NUL: names of
	// MaxMethodNameLen bytes or longer are rejected, since rpccore.NewCore
	// sets wire.MaxMethodNameLen to one less than this value.
	// Grounded on MRPC_MAX_METHOD_NAME_LEN (128) from the original runtime.
	MaxMethodNameLen int `mapstructure:"max_method_name_len" validate:"required,min=1" yaml:"max_method_name_len"`

	// MaxParameterCount bounds the number of parameters a single call
	// carries; wired into wire.MaxParameters by rpccore.NewCore.
	// Grounded on MRPC_MAX_PARAMETER_SIZE (16) from the original runtime.
	MaxParameterCount int `mapstructure:"max_parameter_count" validate:"required,min=1" yaml:"max_parameter_count"`

	// InitialTableCapacity sizes the dispatcher's method table on its first
	// allocation (rounded up to a power of two by dispatch.NewService).
	// This has no analogue in the original runtime, which sizes its method
	// table from a fixed compile-time constant; nanorpc makes it tunable.
	InitialTableCapacity int `mapstructure:"initial_table_capacity" validate:"required,min=1" yaml:"initial_table_capacity"`

	// SpinRetries is the busy-spin retry budget before a dequeue sleeps.
	// Grounded on MAX_SPIN (10) from the original queue implementation.
	SpinRetries int `mapstructure:"spin_retries" validate:"required,min=0" yaml:"spin_retries"`

	// MinSleep is the initial backoff sleep once spinning is exhausted.
	// Grounded on MIN_SLEEP_TIME (2ms) from the original queue implementation.
	MinSleep time.Duration `mapstructure:"min_sleep" validate:"required,gt=0" yaml:"min_sleep"`

	// MaxSleep caps the exponential backoff sleep.
	// Grounded on MAX_SLEEP_TIME (256ms) from the original queue implementation.
	MaxSleep time.Duration `mapstructure:"max_sleep" validate:"required,gt=0" yaml:"max_sleep"`
}

// ClientConfig controls the blocking client's connect/send/recv behavior.
type ClientConfig struct {
	// ConnectTimeout bounds a blocking client's dial attempt.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"required,gt=0" yaml:"connect_timeout"`

	// CallTimeout bounds a blocking client's request/response round trip.
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"required,gt=0" yaml:"call_timeout"`

	// StackBufferSize is the size of the inline read buffer used before
	// falling back to a heap allocation for oversized replies.
	StackBufferSize int `mapstructure:"stack_buffer_size" validate:"required,min=1" yaml:"stack_buffer_size"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" validate:"omitempty" yaml:"addr"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("NANORPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/nanorpc")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}
