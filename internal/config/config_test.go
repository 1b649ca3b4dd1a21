package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "addr: 10.0.0.5:9000\nprotocol: json\ncars: 50\njam_prob: 0.1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != "10.0.0.5:9000" || cfg.Protocol != "json" || cfg.Cars != 50 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.JamProb != 0.1 {
		t.Errorf("jam_prob: got %g, want 0.1", cfg.JamProb)
	}
	// Untouched fields keep their defaults.
	if cfg.Steps != Default().Steps {
		t.Errorf("steps default lost: got %d", cfg.Steps)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("crs: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected strict parsing to reject an unknown field")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg != Default() {
		t.Error("empty path did not return the defaults")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Protocol = "grpc" },
			wantErr: "protocol",
		},
		{
			name:    "zero cars",
			mutate:  func(c *Config) { c.Cars = 0 },
			wantErr: "cars",
		},
		{
			name:    "negative dt",
			mutate:  func(c *Config) { c.Dt = -1 },
			wantErr: "dt",
		},
		{
			name:    "inverted speed factors",
			mutate:  func(c *Config) { c.MinSpeedFactor = 1.0; c.MaxSpeedFactor = 0.5 },
			wantErr: "speed factor",
		},
		{
			name:    "jam probability above one",
			mutate:  func(c *Config) { c.JamProb = 1.5 },
			wantErr: "jam_prob",
		},
		{
			name:    "jam factor above one",
			mutate:  func(c *Config) { c.JamMaxFactor = 1.2 },
			wantErr: "jam factor",
		},
		{
			name:    "inverted jam steps",
			mutate:  func(c *Config) { c.JamMinSteps = 10; c.JamMaxSteps = 5 },
			wantErr: "jam duration",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
