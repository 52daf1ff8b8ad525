package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Driver DriverConfig `yaml:"driver"`
}

// ---- DRIVER ----

type DriverConfig struct {
	TickIntervalMs   int      `yaml:"tick_interval_ms"`
	StatusEveryTicks int      `yaml:"status_every_ticks"`
	ShmName          string   `yaml:"shm_name"`
	Motor            Motor    `yaml:"motor"`
	Sensors          Sensors  `yaml:"sensors"`
	IRQEnabled       []string `yaml:"irq_enabled"`
}

// ---- MOTOR ----

type Motor struct {
	StartSpeed int    `yaml:"start_speed"` // 0 disables the demo auto-start
	Direction  string `yaml:"direction"`   // cw | ccw
}

// ---- SENSORS ----

type Sensors struct {
	Continuous bool    `yaml:"continuous"`
	Simulated  []int32 `yaml:"simulated"` // raw seed values, index = sensor id
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Driver: DriverConfig{
			TickIntervalMs:   10,
			StatusEveryTicks: 50,
			ShmName:          "motor_driver_shm",
			Motor: Motor{
				StartSpeed: 5000,
				Direction:  "cw",
			},
			Sensors: Sensors{
				Simulated: []int32{100, 5000, 45, 2500},
			},
			IRQEnabled: []string{"motor_fault", "motor_stall", "sensor_ready"},
		},
	}
}

// Load reads and parses the YAML configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return &cfg, nil
}
