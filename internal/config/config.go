// Package config loads the node's static tuning parameters from a YAML
// file (§2a "Configuration"), with in-process defaults recovered from the
// original implementation's centralized parameter store (§10 "Recovered
// constants").
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Redundancy holds the PID gains and clamps for the uplink redundancy
// controller (§4.3).
type Redundancy struct {
	Kp           float64 `yaml:"kp"`
	Ki           float64 `yaml:"ki"`
	Kd           float64 `yaml:"kd"`
	IntegralMin  float64 `yaml:"integral_min"`
	IntegralMax  float64 `yaml:"integral_max"`
	MinRedundant int     `yaml:"min_redundant"`
	MaxRedundant int     `yaml:"max_redundant"`
}

// Config is the full set of parameters a node needs at startup. All
// durations are nanosecond-precision time.Duration, marshaled to YAML as
// Go duration strings ("5ms", "1s", ...).
type Config struct {
	NumFloors int `yaml:"num_floors"`

	BroadcastPort int    `yaml:"broadcast_port"`
	UplinkPort    int    `yaml:"uplink_port"`
	HardwarePort  int    `yaml:"hardware_port"`
	GroupKey      string `yaml:"group_key"`

	BroadcastPeriod time.Duration `yaml:"broadcast_period"`

	UplinkTick        time.Duration `yaml:"uplink_tick"`
	UplinkT0          time.Duration `yaml:"uplink_t0"`
	UplinkBackoffStep time.Duration `yaml:"uplink_backoff_step"`
	UplinkMaxRetries  int           `yaml:"uplink_max_retries"`

	JanitorSweep      time.Duration `yaml:"janitor_sweep"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`

	DoorTimeout        time.Duration `yaml:"door_timeout"`
	CabPriorityTimeout time.Duration `yaml:"cab_priority_timeout"`
	TravelErrorTimeout time.Duration `yaml:"travel_error_timeout"`

	UDPWatchdog        time.Duration `yaml:"udp_watchdog"`
	HardwarePollPeriod time.Duration `yaml:"hardware_poll_period"`

	OraclePath       string        `yaml:"oracle_path"`
	OracleTimeout    time.Duration `yaml:"oracle_timeout"`
	AssignmentPeriod time.Duration `yaml:"assignment_period"`

	Redundancy Redundancy `yaml:"redundancy"`
}

// Default returns the recovered-constants baseline (§10 "Recovered
// constants"), before any file or flag overrides are applied.
func Default() *Config {
	return &Config{
		NumFloors: 4,

		BroadcastPort: 42069,
		UplinkPort:    50000,
		HardwarePort:  15657,
		GroupKey:      "liftctl-fleet",

		BroadcastPeriod: 5 * time.Millisecond,

		UplinkTick:        100 * time.Millisecond,
		UplinkT0:          50 * time.Millisecond,
		UplinkBackoffStep: 5 * time.Millisecond,
		UplinkMaxRetries:  20,

		JanitorSweep:      1 * time.Second,
		InactivityTimeout: 5 * time.Second,

		DoorTimeout:        3 * time.Second,
		CabPriorityTimeout: 10 * time.Second,
		TravelErrorTimeout: 7 * time.Second,

		UDPWatchdog:        1 * time.Second,
		HardwarePollPeriod: 25 * time.Millisecond,

		OraclePath:       "",
		OracleTimeout:    2 * time.Second,
		AssignmentPeriod: 250 * time.Millisecond,

		Redundancy: Redundancy{
			Kp:           60.0,
			Ki:           14.05,
			Kd:           1.01,
			IntegralMin:  -20.0,
			IntegralMax:  20.0,
			MinRedundant: 1,
			MaxRedundant: 300,
		},
	}
}

// Load reads path as YAML over the defaults; a missing file is not an
// error — the caller gets the defaults untouched, matching how a node
// with no config file should still start (§2a, §9 "no disk persistence").
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects a config that would make the rest of the node
// misbehave rather than let a zero or negative value surface as a
// confusing runtime error deep in a timer or slice index.
func (c *Config) Validate() error {
	if c.NumFloors <= 0 {
		return fmt.Errorf("num_floors must be positive, got %d", c.NumFloors)
	}
	if c.BroadcastPort <= 0 || c.UplinkPort <= 0 || c.HardwarePort <= 0 {
		return fmt.Errorf("all ports must be positive: broadcast=%d uplink=%d hardware=%d",
			c.BroadcastPort, c.UplinkPort, c.HardwarePort)
	}
	if c.GroupKey == "" {
		return fmt.Errorf("group_key must not be empty")
	}
	if c.Redundancy.MinRedundant < 1 || c.Redundancy.MaxRedundant < c.Redundancy.MinRedundant {
		return fmt.Errorf("invalid redundancy bounds: min=%d max=%d",
			c.Redundancy.MinRedundant, c.Redundancy.MaxRedundant)
	}
	return nil
}

// Save writes cfg to path as YAML, creating or truncating the file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %q: %w", path, err)
	}
	return nil
}
