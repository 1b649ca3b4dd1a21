// Package config defines the simulation configuration surface and its
// YAML loader.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration of a simulation run.
type Config struct {
	// Server connection
	Addr     string        `yaml:"addr"`     // routing server host:port
	Protocol string        `yaml:"protocol"` // "line" or "json"
	Timeout  time.Duration `yaml:"timeout"`  // transport deadline per exchange

	// Graph input
	GraphDir string `yaml:"graph_dir"`

	// Run shape
	Cars  int     `yaml:"cars"`
	Steps int     `yaml:"steps"`
	Dt    float64 `yaml:"dt"` // simulated seconds per step
	Seed  int64   `yaml:"seed"`

	// Per-step pacing and reporting
	SleepMs     int `yaml:"sleep_ms"`     // boundary-phase pacing delay
	ReportEvery int `yaml:"report_every"` // UPD cadence in steps, 0 disables
	LogEvery    int `yaml:"log_every"`    // progress log cadence, 0 disables

	// Car behavior
	MinSpeedFactor  float64 `yaml:"min_speed_factor"`
	MaxSpeedFactor  float64 `yaml:"max_speed_factor"`
	SpeedHoldMin    int     `yaml:"speed_hold_min"`
	SpeedHoldMax    int     `yaml:"speed_hold_max"`
	RouteCooldown   int     `yaml:"route_cooldown_steps"`   // after adopting a route
	RerouteCooldown int     `yaml:"reroute_cooldown_steps"` // after a failed request
	ArrivalCooldown int     `yaml:"arrival_cooldown_steps"` // after arriving
	RerouteEvery    int     `yaml:"reroute_every_steps"`    // mid-route refresh cadence, 0 disables

	// Jam model
	JamProb      float64 `yaml:"jam_prob"`
	JamMinFactor float64 `yaml:"jam_min_factor"`
	JamMaxFactor float64 `yaml:"jam_max_factor"`
	JamMinSteps  int     `yaml:"jam_min_steps"`
	JamMaxSteps  int     `yaml:"jam_max_steps"`
	JamMinCars   int     `yaml:"jam_min_cars"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Addr:     "127.0.0.1:8080",
		Protocol: "line",
		Timeout:  3 * time.Second,
		GraphDir: "data",

		Cars:  10,
		Steps: 200,
		Dt:    1.0,
		Seed:  1,

		SleepMs:     0,
		ReportEvery: 5,
		LogEvery:    10,

		MinSpeedFactor:  0.4,
		MaxSpeedFactor:  1.0,
		SpeedHoldMin:    3,
		SpeedHoldMax:    10,
		RouteCooldown:   0,
		RerouteCooldown: 3,
		ArrivalCooldown: 5,
		RerouteEvery:    0,

		JamProb:      0.02,
		JamMinFactor: 0.2,
		JamMaxFactor: 0.6,
		JamMinSteps:  5,
		JamMaxSteps:  20,
		JamMinCars:   3,
	}
}

// Load reads a YAML config file over the defaults using strict parsing.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	switch c.Protocol {
	case "line", "json":
	default:
		return fmt.Errorf("unknown protocol %q (want line or json)", c.Protocol)
	}
	if c.Cars <= 0 {
		return fmt.Errorf("cars must be positive, got %d", c.Cars)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.MinSpeedFactor <= 0 || c.MaxSpeedFactor < c.MinSpeedFactor {
		return fmt.Errorf("invalid speed factor range [%g, %g]", c.MinSpeedFactor, c.MaxSpeedFactor)
	}
	if c.SpeedHoldMin < 0 || c.SpeedHoldMax < c.SpeedHoldMin {
		return fmt.Errorf("invalid speed hold range [%d, %d]", c.SpeedHoldMin, c.SpeedHoldMax)
	}
	if c.JamProb < 0 || c.JamProb > 1 {
		return fmt.Errorf("jam_prob must be in [0,1], got %g", c.JamProb)
	}
	if c.JamMinFactor <= 0 || c.JamMaxFactor < c.JamMinFactor || c.JamMaxFactor > 1 {
		return fmt.Errorf("invalid jam factor range [%g, %g]", c.JamMinFactor, c.JamMaxFactor)
	}
	if c.JamMinSteps < 1 || c.JamMaxSteps < c.JamMinSteps {
		return fmt.Errorf("invalid jam duration range [%d, %d]", c.JamMinSteps, c.JamMaxSteps)
	}
	return nil
}
