package irq

import (
	"errors"
	"sync/atomic"

	"github.com/tamzrod/motor-driver/internal/device"
	"github.com/tamzrod/motor-driver/internal/motor"
	"github.com/tamzrod/motor-driver/internal/sensor"
)

// Source is a vectored interrupt line. Dispatch order is ascending by
// source index, not priority.
type Source int

const (
	SrcMotorFault Source = iota
	SrcMotorStall
	SrcSensorReady
	SrcSensorError
	SrcTimer

	SourceCount
)

func (s Source) String() string {
	switch s {
	case SrcMotorFault:
		return "motor_fault"
	case SrcMotorStall:
		return "motor_stall"
	case SrcSensorReady:
		return "sensor_ready"
	case SrcSensorError:
		return "sensor_error"
	case SrcTimer:
		return "timer"
	}
	return "unknown"
}

// ErrBadSource rejects an out-of-range interrupt source.
var ErrBadSource = errors.New("irq: invalid interrupt source")

// ErrNilRegs is returned when no register file is supplied.
var ErrNilRegs = errors.New("irq: nil register file")

// Handler is invoked from ProcessPending for each dispatched source. The
// opaque context is whatever was registered alongside it; its lifetime
// must outlive any possible dispatch.
type Handler func(src Source, ctx any)

// current is the process-wide controller handle. The async trigger path
// has no context of its own, so Raise reads this with acquire semantics
// and touches only atomic fields.
var current atomic.Pointer[Controller]

// Controller owns the enabled and pending masks, mirrored in the IRQ
// enable and status registers, and dispatches to registered handlers.
//
// Except for Raise and the latch, the controller belongs to the tick
// loop and is not safe for concurrent use.
type Controller struct {
	regs    *device.File
	motor   *motor.Controller
	sensors *sensor.Array

	handlers [SourceCount]Handler
	contexts [SourceCount]any

	// enabled and pending are atomics because the async path reads the
	// former and writes the latter.
	enabled atomic.Uint32
	pending atomic.Uint32
	latch   atomic.Bool

	stopRelay func()
}

// New zeroes the IRQ registers and installs the controller as the
// process-wide dispatch target for Raise.
func New(regs *device.File, mc *motor.Controller, sa *sensor.Array) (*Controller, error) {
	if regs == nil {
		return nil, ErrNilRegs
	}

	c := &Controller{regs: regs, motor: mc, sensors: sa}

	regs.Write(device.RegIRQStatus, 0)
	regs.Write(device.RegIRQEnable, 0)

	current.Store(c)

	return c, nil
}

// Cleanup disables every source, releases the process-wide handle and
// stops the signal relay if one was started.
func (c *Controller) Cleanup() {
	c.DisableAll()
	current.CompareAndSwap(c, nil)
	if c.stopRelay != nil {
		c.stopRelay()
		c.stopRelay = nil
	}
}

// RegisterHandler binds fn and its context to src, replacing any prior
// binding.
func (c *Controller) RegisterHandler(src Source, fn Handler, ctx any) error {
	if src < 0 || src >= SourceCount {
		return ErrBadSource
	}
	c.handlers[src] = fn
	c.contexts[src] = ctx
	return nil
}

// UnregisterHandler removes the binding for src.
func (c *Controller) UnregisterHandler(src Source) error {
	if src < 0 || src >= SourceCount {
		return ErrBadSource
	}
	c.handlers[src] = nil
	c.contexts[src] = nil
	return nil
}

// Enable unmasks src and mirrors the bit into the IRQ enable register.
func (c *Controller) Enable(src Source) error {
	if src < 0 || src >= SourceCount {
		return ErrBadSource
	}
	orUint32(&c.enabled, 1<<uint(src))
	c.regs.SetBits(device.RegIRQEnable, 1<<uint(src))
	return nil
}

// Disable masks src and clears its bit in the IRQ enable register.
func (c *Controller) Disable(src Source) error {
	if src < 0 || src >= SourceCount {
		return ErrBadSource
	}
	andNotUint32(&c.enabled, 1<<uint(src))
	c.regs.ClearBits(device.RegIRQEnable, 1<<uint(src))
	return nil
}

// EnableAll unmasks every defined source.
func (c *Controller) EnableAll() {
	mask := uint32(1<<uint(SourceCount)) - 1
	c.enabled.Store(mask)
	c.regs.Write(device.RegIRQEnable, mask)
}

// DisableAll masks every source.
func (c *Controller) DisableAll() {
	c.enabled.Store(0)
	c.regs.Write(device.RegIRQEnable, 0)
}

// Trigger pends src if it is currently enabled; a masked source is
// silently dropped. Pending is idempotent.
func (c *Controller) Trigger(src Source) {
	if src < 0 || src >= SourceCount {
		return
	}
	bit := uint32(1) << uint(src)
	if c.enabled.Load()&bit == 0 {
		return
	}
	orUint32(&c.pending, bit)
	c.regs.SetBits(device.RegIRQStatus, bit)
}

// IsPending reports whether src has been triggered and not yet
// dispatched.
func (c *Controller) IsPending(src Source) bool {
	if src < 0 || src >= SourceCount {
		return false
	}
	return c.pending.Load()&(1<<uint(src)) != 0
}

// PendingMask returns the raw pending bitfield.
func (c *Controller) PendingMask() uint32 {
	return c.pending.Load()
}

// Clear acknowledges src without dispatching it.
func (c *Controller) Clear(src Source) {
	if src < 0 || src >= SourceCount {
		return
	}
	andNotUint32(&c.pending, 1<<uint(src))
	c.regs.ClearBits(device.RegIRQStatus, 1<<uint(src))
}

// ProcessPending drains the async latch, dispatches every pending source
// with a registered handler in ascending source order, then clears the
// pending mask and the IRQ status register. Pending sources without a
// handler count as acknowledged. Returns the number of handlers invoked.
//
// Must be called from the tick loop; handlers never run in async
// context.
func (c *Controller) ProcessPending() int {
	if c.latch.Swap(false) {
		c.Trigger(SrcTimer)
	}

	// Async pends bypass the register file; mirror them before dispatch
	// so the status register is consistent while handlers run.
	pending := c.pending.Load()
	c.regs.SetBits(device.RegIRQStatus, pending)

	processed := 0
	for i := Source(0); i < SourceCount; i++ {
		if pending&(1<<uint(i)) != 0 && c.handlers[i] != nil {
			c.handlers[i](i, c.contexts[i])
			processed++
		}
	}

	c.pending.Store(0)
	c.regs.Write(device.RegIRQStatus, 0)

	return processed
}

// Line is a host-level asynchronous signal line mapped onto interrupt
// sources.
type Line int

const (
	// LineMotorFault pends SrcMotorFault (SIGUSR1 on the demo host).
	LineMotorFault Line = iota
	// LineSensorReady pends SrcSensorReady (SIGUSR2 on the demo host).
	LineSensorReady
)

// Raise is the asynchronous trigger entry point. It may be called from
// signal-delivery context: it loads the process-wide handle once, sets
// the latch and, if the mapped source is enabled, ORs its bit into the
// pending mask. No
// locks, no register file access; dispatch is deferred to the next
// ProcessPending.
func Raise(line Line) {
	c := current.Load()
	if c == nil {
		return
	}

	c.latch.Store(true)

	var src Source
	switch line {
	case LineMotorFault:
		src = SrcMotorFault
	case LineSensorReady:
		src = SrcSensorReady
	default:
		return
	}

	bit := uint32(1) << uint(src)
	if c.enabled.Load()&bit != 0 {
		orUint32(&c.pending, bit)
	}
}

func orUint32(v *atomic.Uint32, bits uint32) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

func andNotUint32(v *atomic.Uint32, bits uint32) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, old&^bits) {
			return
		}
	}
}
