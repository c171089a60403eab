package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddr != "0.0.0.0:7890" {
		t.Errorf("expected default listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.Workers != 4 {
		t.Errorf("expected default worker count 4, got %d", cfg.Server.Workers)
	}
	if cfg.Server.IdleCloseTimeout != 15*time.Second {
		t.Errorf("expected default idle close timeout 15s, got %v", cfg.Server.IdleCloseTimeout)
	}
	if cfg.Server.OutbandQueueSize != 100 {
		t.Errorf("expected default outband queue size 100, got %d", cfg.Server.OutbandQueueSize)
	}
	if cfg.Server.ReserveMempool != 50 {
		t.Errorf("expected default reserve mempool 50, got %d", cfg.Server.ReserveMempool)
	}
	if cfg.Server.MaxMethodNameLen != 128 {
		t.Errorf("expected default max method name len 128, got %d", cfg.Server.MaxMethodNameLen)
	}
	if cfg.Server.MaxParameterCount != 16 {
		t.Errorf("expected default max parameter count 16, got %d", cfg.Server.MaxParameterCount)
	}
	if cfg.Server.InitialTableCapacity != 16 {
		t.Errorf("expected default initial table capacity 16, got %d", cfg.Server.InitialTableCapacity)
	}
	if cfg.Server.SpinRetries != 10 {
		t.Errorf("expected default spin retries 10, got %d", cfg.Server.SpinRetries)
	}
	if cfg.Server.MinSleep != 2*time.Millisecond {
		t.Errorf("expected default min sleep 2ms, got %v", cfg.Server.MinSleep)
	}
	if cfg.Server.MaxSleep != 256*time.Millisecond {
		t.Errorf("expected default max sleep 256ms, got %v", cfg.Server.MaxSleep)
	}
}

func TestApplyDefaults_Client(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Client.ConnectTimeout != 5*time.Second {
		t.Errorf("expected default connect timeout 5s, got %v", cfg.Client.ConnectTimeout)
	}
	if cfg.Client.CallTimeout != 10*time.Second {
		t.Errorf("expected default call timeout 10s, got %v", cfg.Client.CallTimeout)
	}
	if cfg.Client.StackBufferSize != 10*1024 {
		t.Errorf("expected default stack buffer size 10KB, got %d", cfg.Client.StackBufferSize)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Workers: 16,
		},
	}
	ApplyDefaults(cfg)

	if cfg.Server.Workers != 16 {
		t.Errorf("expected explicit worker count 16 to be preserved, got %d", cfg.Server.Workers)
	}
	// Untouched fields still receive defaults.
	if cfg.Server.ListenAddr != "0.0.0.0:7890" {
		t.Errorf("expected default listen addr to be applied, got %q", cfg.Server.ListenAddr)
	}
}

func TestValidate_RejectsMissingListenAddr(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ListenAddr = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty listen_addr")
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}
