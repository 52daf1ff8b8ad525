package config

import (
	"fmt"

	"github.com/tamzrod/motor-driver/internal/irq"
	"github.com/tamzrod/motor-driver/internal/sensor"
)

// irqSources maps configuration names onto interrupt sources.
var irqSources = map[string]irq.Source{
	"motor_fault":  irq.SrcMotorFault,
	"motor_stall":  irq.SrcMotorStall,
	"sensor_ready": irq.SrcSensorReady,
	"sensor_error": irq.SrcSensorError,
	"timer":        irq.SrcTimer,
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	d := &cfg.Driver

	if d.TickIntervalMs < 0 {
		return fmt.Errorf("config: tick_interval_ms must not be negative")
	}
	if d.StatusEveryTicks < 0 {
		return fmt.Errorf("config: status_every_ticks must not be negative")
	}

	if d.Motor.StartSpeed < 0 {
		return fmt.Errorf("config: motor start_speed must not be negative")
	}
	switch d.Motor.Direction {
	case "", "cw", "ccw":
	default:
		return fmt.Errorf("config: motor direction %q (want cw or ccw)", d.Motor.Direction)
	}

	if n := len(d.Sensors.Simulated); n > sensor.Count {
		return fmt.Errorf("config: %d simulated sensor values (max %d)", n, sensor.Count)
	}

	for _, name := range d.IRQEnabled {
		if _, ok := irqSources[name]; !ok {
			return fmt.Errorf("config: unknown irq source %q", name)
		}
	}

	return nil
}

// Normalize applies post-validation defaulting.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	d := &cfg.Driver

	if d.TickIntervalMs == 0 {
		d.TickIntervalMs = 10
	}
	if d.StatusEveryTicks == 0 {
		d.StatusEveryTicks = 50
	}
	if d.ShmName == "" {
		d.ShmName = "motor_driver_shm"
	}
	if d.Motor.Direction == "" {
		d.Motor.Direction = "cw"
	}
}

// EnabledSources resolves irq_enabled names into interrupt sources.
// Call only after Validate().
func (c *Config) EnabledSources() []irq.Source {
	out := make([]irq.Source, 0, len(c.Driver.IRQEnabled))
	for _, name := range c.Driver.IRQEnabled {
		if src, ok := irqSources[name]; ok {
			out = append(out, src)
		}
	}
	return out
}
