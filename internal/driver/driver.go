// Package driver owns the cooperative tick loop: one TickOnce runs the
// motor state machine, the sensor acquisition pass, interrupt dispatch,
// the status publish and the command poll, strictly in that order.
package driver

import (
	"errors"

	"github.com/tamzrod/motor-driver/internal/device"
	"github.com/tamzrod/motor-driver/internal/irq"
	"github.com/tamzrod/motor-driver/internal/motor"
	"github.com/tamzrod/motor-driver/internal/sensor"
	"github.com/tamzrod/motor-driver/internal/shm"
	"github.com/tamzrod/motor-driver/internal/status"
)

// defaultTriggerEvery is the sensor acquisition cadence in ticks.
const defaultTriggerEvery = 10

// ErrNilChannel is returned when no command channel is supplied.
var ErrNilChannel = errors.New("driver: nil channel")

// Driver wires the register file, motor, sensors and interrupt
// controller together and services the shared channel. It is a
// single-threaded clock-driven worker; only the channel crosses
// thread or process boundaries.
type Driver struct {
	regs    *device.File
	motor   *motor.Controller
	sensors *sensor.Array
	irq     *irq.Controller
	ch      shm.Channel

	// TriggerEvery is the sensor sampling cadence in ticks.
	TriggerEvery int

	// Logf, when set, receives progress lines. The core never logs on
	// its own.
	Logf func(format string, args ...any)

	tick uint64
}

// New builds the full device model on a fresh register file and attaches
// it to ch.
func New(ch shm.Channel) (*Driver, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}

	regs := device.New()

	mc, err := motor.New(regs)
	if err != nil {
		return nil, err
	}
	sa, err := sensor.New(regs)
	if err != nil {
		return nil, err
	}
	ic, err := irq.New(regs, mc, sa)
	if err != nil {
		return nil, err
	}

	return &Driver{
		regs:         regs,
		motor:        mc,
		sensors:      sa,
		irq:          ic,
		ch:           ch,
		TriggerEvery: defaultTriggerEvery,
	}, nil
}

func (d *Driver) Regs() *device.File       { return d.regs }
func (d *Driver) Motor() *motor.Controller { return d.motor }
func (d *Driver) Sensors() *sensor.Array   { return d.sensors }
func (d *Driver) IRQ() *irq.Controller     { return d.irq }
func (d *Driver) Tick() uint64             { return d.tick }

// TickOnce performs exactly one update cycle. Ordering is part of the
// contract: motor before sensors before interrupt dispatch before the
// status publish before the command poll.
func (d *Driver) TickOnce() {
	d.motor.Update()

	if d.TriggerEvery > 0 && d.tick%uint64(d.TriggerEvery) == 0 {
		d.sensors.Trigger()
	}
	d.sensors.Update()

	if d.motor.State() == motor.StateFault {
		d.irq.Trigger(irq.SrcMotorFault)
	}
	d.irq.ProcessPending()

	d.publishStatus()
	d.pollCommand()

	d.tick++
}

// publishStatus writes the current snapshot into the shared region.
func (d *Driver) publishStatus() {
	var snap status.Snapshot
	snap.MotorState = uint32(d.motor.State())
	snap.MotorSpeed = d.motor.Speed()
	snap.MotorPosition = d.motor.Position()
	d.sensors.ReadAll(snap.SensorValues[:])
	snap.FaultCode = uint32(d.motor.Fault())

	d.ch.UpdateStatus(snap)
}

// pollCommand services at most one request per tick. The non-blocking
// poll keeps the update cadence independent of the controller process.
func (d *Driver) pollCommand() {
	cmd, err := d.ch.TryGetCommand()
	if err != nil {
		return
	}
	d.serviceCommand(cmd)
}

func (d *Driver) logf(format string, args ...any) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}
