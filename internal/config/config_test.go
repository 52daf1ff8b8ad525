package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tamzrod/motor-driver/internal/irq"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	Normalize(cfg)
	if cfg.Driver.TickIntervalMs != 10 {
		t.Fatalf("tick interval = %d, want 10", cfg.Driver.TickIntervalMs)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.yaml")
	doc := `
driver:
  tick_interval_ms: 20
  shm_name: testshm
  motor:
    start_speed: 2500
    direction: ccw
  sensors:
    continuous: true
    simulated: [1, 2, 3]
  irq_enabled: [timer, sensor_error]
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	Normalize(cfg)

	d := cfg.Driver
	if d.TickIntervalMs != 20 || d.ShmName != "testshm" {
		t.Fatalf("driver config = %+v", d)
	}
	if d.Motor.StartSpeed != 2500 || d.Motor.Direction != "ccw" {
		t.Fatalf("motor config = %+v", d.Motor)
	}
	if !d.Sensors.Continuous || len(d.Sensors.Simulated) != 3 {
		t.Fatalf("sensor config = %+v", d.Sensors)
	}
	// Unset fields picked up defaults.
	if d.StatusEveryTicks != 50 {
		t.Fatalf("status_every_ticks = %d, want default 50", d.StatusEveryTicks)
	}

	srcs := cfg.EnabledSources()
	if len(srcs) != 2 || srcs[0] != irq.SrcTimer || srcs[1] != irq.SrcSensorError {
		t.Fatalf("EnabledSources = %v", srcs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative interval", func(c *Config) { c.Driver.TickIntervalMs = -1 }},
		{"negative speed", func(c *Config) { c.Driver.Motor.StartSpeed = -5 }},
		{"bad direction", func(c *Config) { c.Driver.Motor.Direction = "up" }},
		{"too many seeds", func(c *Config) { c.Driver.Sensors.Simulated = make([]int32, 5) }},
		{"unknown irq", func(c *Config) { c.Driver.IRQEnabled = []string{"dma"} }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: Validate accepted bad config", tc.name)
		}
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate zero config: %v", err)
	}
	Normalize(cfg)

	d := cfg.Driver
	if d.TickIntervalMs != 10 || d.StatusEveryTicks != 50 {
		t.Fatalf("defaults not applied: %+v", d)
	}
	if d.ShmName != "motor_driver_shm" || d.Motor.Direction != "cw" {
		t.Fatalf("defaults not applied: %+v", d)
	}
}
