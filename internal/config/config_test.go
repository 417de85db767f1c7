package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPassesValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumFloors != Default().NumFloors {
		t.Fatalf("expected defaults when file is absent, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.NumFloors = 8
	cfg.BroadcastPeriod = 9 * time.Millisecond
	cfg.GroupKey = "test-fleet"

	path := filepath.Join(t.TempDir(), "liftctl.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NumFloors != 8 || got.BroadcastPeriod != 9*time.Millisecond || got.GroupKey != "test-fleet" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	// Fields absent from the override should still carry the baked-in default.
	if got.UplinkMaxRetries != Default().UplinkMaxRetries {
		t.Fatalf("expected untouched field to retain its default, got %d", got.UplinkMaxRetries)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero floors", func(c *Config) { c.NumFloors = 0 }},
		{"zero port", func(c *Config) { c.BroadcastPort = 0 }},
		{"empty group key", func(c *Config) { c.GroupKey = "" }},
		{"inverted redundancy bounds", func(c *Config) {
			c.Redundancy.MinRedundant = 10
			c.Redundancy.MaxRedundant = 5
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected Validate to reject: %s", tt.name)
			}
		})
	}
}
