package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !cfg.Dispatch.AutoDial {
		t.Error("expected auto dial by default")
	}
	if cfg.Dispatch.InterAttemptDelay != 10*time.Second {
		t.Errorf("InterAttemptDelay = %s, want 10s", cfg.Dispatch.InterAttemptDelay)
	}
	if cfg.Timeout.Min != 90*time.Second || cfg.Timeout.Max != 180*time.Second {
		t.Errorf("timeout bounds = [%s, %s], want [1m30s, 3m0s]", cfg.Timeout.Min, cfg.Timeout.Max)
	}
	if cfg.Retry.SessionLookupAttempts != 5 {
		t.Errorf("SessionLookupAttempts = %d, want 5", cfg.Retry.SessionLookupAttempts)
	}
	if !cfg.Offline() {
		t.Error("expected offline without backend URL")
	}
}

func TestLoadConfig_OverridesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".safebridge"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	yaml := `
dispatch:
  auto_dial: false
  poll_interval: 5s
backend:
  url: http://localhost:8000
push:
  transport: nats
  nats_url: nats://localhost:4222
`
	if err := os.WriteFile(Path(dir), []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Dispatch.AutoDial {
		t.Error("AutoDial = true, want false")
	}
	if cfg.Dispatch.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.Dispatch.PollInterval)
	}
	if cfg.Dispatch.InterAttemptDelay != 10*time.Second {
		t.Errorf("unset InterAttemptDelay lost its default: %s", cfg.Dispatch.InterAttemptDelay)
	}
	if cfg.Push.Transport != TransportNATS || cfg.Push.NATSURL != "nats://localhost:4222" {
		t.Errorf("push = %+v", cfg.Push)
	}
	if cfg.Offline() {
		t.Error("expected online with backend URL")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Backend.URL = "https://dispatch.example"
	cfg.Timeout.ResponseWindow = 45 * time.Second
	cfg.Metrics.Addr = ":9090"

	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	if !strings.Contains(string(data), "response_window: 45s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	got, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed yaml", content: "dispatch: [", wantErr: "failed to parse config"},
		{name: "unknown transport", content: "push:\n  transport: carrier-pigeon\n", wantErr: "invalid push transport"},
		{name: "nats without url", content: "push:\n  transport: nats\n", wantErr: "nats_url"},
		{name: "inverted bounds", content: "timeout:\n  min: 200s\n", wantErr: "exceeds"},
		{name: "zero attempts", content: "retry:\n  dial_attempts: 0\n", wantErr: "at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			os.MkdirAll(filepath.Join(dir, ".safebridge"), 0755)
			if err := os.WriteFile(Path(dir), []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			_, err := LoadConfig(dir)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
