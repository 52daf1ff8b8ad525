// cmd/motord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/motor-driver/internal/config"
	"github.com/tamzrod/motor-driver/internal/driver"
	"github.com/tamzrod/motor-driver/internal/irq"
	"github.com/tamzrod/motor-driver/internal/motor"
	"github.com/tamzrod/motor-driver/internal/sensor"
	"github.com/tamzrod/motor-driver/internal/shm"
)

func main() {
	// --------------------
	// Load + validate config (optional positional path, no flags)
	// --------------------

	cfg := config.Default()
	if len(os.Args) > 1 {
		loaded, err := config.Load(os.Args[1])
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = loaded
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	// --------------------
	// Shared channel (owner role)
	// --------------------

	ch, err := shm.Create(cfg.Driver.ShmName)
	if err != nil {
		log.Fatalf("shared memory create failed: %v", err)
	}
	defer ch.Destroy()

	// --------------------
	// Device model
	// --------------------

	d, err := driver.New(ch)
	if err != nil {
		log.Fatalf("driver init failed: %v", err)
	}
	d.Logf = log.Printf
	defer d.IRQ().Cleanup()

	// IRQ callbacks: log-only observers, contexts borrowed from the
	// driver for the life of the process.
	d.IRQ().RegisterHandler(irq.SrcMotorFault, func(src irq.Source, ctx any) {
		mc := ctx.(*motor.Controller)
		log.Printf("[IRQ] motor fault: %v", mc.Fault())
	}, d.Motor())
	d.IRQ().RegisterHandler(irq.SrcMotorStall, func(src irq.Source, ctx any) {
		mc := ctx.(*motor.Controller)
		log.Printf("[IRQ] motor stall: %v", mc.Fault())
	}, d.Motor())
	d.IRQ().RegisterHandler(irq.SrcSensorReady, func(src irq.Source, ctx any) {
		sa := ctx.(*sensor.Array)
		log.Printf("[IRQ] sensor data ready, buffer count: %d", sa.BufferCount())
	}, d.Sensors())

	for _, src := range cfg.EnabledSources() {
		d.IRQ().Enable(src)
	}

	// SIGUSR1 -> motor fault line, SIGUSR2 -> sensor ready line.
	d.IRQ().StartSignalRelay()

	// --------------------
	// Sensors + demo motor start
	// --------------------

	d.Sensors().Enable()
	d.Sensors().SetContinuous(cfg.Driver.Sensors.Continuous)
	for id, v := range cfg.Driver.Sensors.Simulated {
		d.Sensors().SetSimulatedValue(id, v)
	}

	if speed := cfg.Driver.Motor.StartSpeed; speed > 0 {
		dir := motor.DirCW
		if cfg.Driver.Motor.Direction == "ccw" {
			dir = motor.DirCCW
		}
		log.Printf("starting motor at %d RPM %s...", speed, cfg.Driver.Motor.Direction)
		if err := d.Motor().Start(uint32(speed), dir); err != nil {
			log.Fatalf("motor start failed: %v", err)
		}
	}

	log.Printf("driver initialized, pid %d", os.Getpid())
	log.Printf("SIGUSR1 = motor fault IRQ, SIGUSR2 = sensor IRQ, SIGINT/SIGTERM = shutdown")

	// --------------------
	// Tick loop until shutdown
	// --------------------

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.Driver.TickIntervalMs) * time.Millisecond

	go func() {
		every := uint64(cfg.Driver.StatusEveryTicks)
		if every == 0 {
			return
		}
		t := time.NewTicker(interval * time.Duration(every))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				snap, err := ch.ReadStatus()
				if err != nil {
					return
				}
				log.Printf("status: state=%s speed=%d position=%d temp=%d",
					motor.State(snap.MotorState), snap.MotorSpeed,
					snap.MotorPosition, snap.SensorValues[2])
			}
		}
	}()

	d.Run(ctx, interval)

	log.Printf("shutting down...")

	// Graceful ramp-down before teardown.
	d.Motor().Stop()
	for d.Motor().IsRunning() {
		d.TickOnce()
		time.Sleep(interval)
	}
	d.Sensors().Disable()

	log.Printf("driver stopped")
}
