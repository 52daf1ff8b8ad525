package motor

import (
	"errors"

	"github.com/tamzrod/motor-driver/internal/device"
)

// MaxSpeed is the mechanical speed ceiling in RPM. Requests above it are
// clamped, never rejected.
const MaxSpeed = 10000

// RampRate is the speed change applied per update tick, in RPM.
const RampRate = 500

// State is the motor state machine state.
type State uint32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateFault
	StateRecovery
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFault:
		return "fault"
	case StateRecovery:
		return "recovery"
	}
	return "unknown"
}

// Direction of rotation.
type Direction uint32

const (
	DirCCW Direction = 0
	DirCW  Direction = 1
)

// Fault codes stashed when the state machine trips.
type Fault uint32

const (
	FaultNone Fault = iota
	FaultStall
	FaultOverheat
	FaultOvercurrent
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultStall:
		return "stall"
	case FaultOverheat:
		return "overheat"
	case FaultOvercurrent:
		return "overcurrent"
	}
	return "unknown"
}

var (
	// ErrNilRegs is returned when no register file is supplied.
	ErrNilRegs = errors.New("motor: nil register file")

	// ErrFaulted rejects operations that are illegal while the motor is
	// in the fault state.
	ErrFaulted = errors.New("motor: controller is in fault state")
)

// Controller owns the motor state machine. It holds a borrowed reference
// to the register file and mirrors its state into the motor control,
// status, speed and position registers.
//
// Controller is not safe for concurrent use; it belongs to the tick loop.
type Controller struct {
	regs *device.File

	state     State
	fault     Fault
	target    uint32
	current   uint32
	position  int32
	direction Direction
}

// New attaches a controller to regs and clears the motor registers.
func New(regs *device.File) (*Controller, error) {
	if regs == nil {
		return nil, ErrNilRegs
	}

	c := &Controller{regs: regs}

	regs.Write(device.RegMotorCtrl, 0)
	regs.Write(device.RegMotorStatus, 0)
	regs.Write(device.RegMotorSpeed, 0)
	regs.Write(device.RegMotorPosition, 0)

	return c, nil
}

// Start records the target speed and direction and begins the ramp-up.
// Speed is clamped to MaxSpeed. Rejected while faulted.
func (c *Controller) Start(speed uint32, dir Direction) error {
	if c.state == StateFault {
		return ErrFaulted
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}

	c.target = speed
	c.direction = dir
	c.state = StateStarting

	// Full write: a fresh start clears BRAKE and any stale RESET bit.
	ctrl := uint32(device.MotorCtrlEnable)
	if dir == DirCW {
		ctrl |= device.MotorCtrlDirCW
	}
	c.regs.Write(device.RegMotorCtrl, ctrl)

	return nil
}

// Stop begins the ramp-down. The state machine reaches idle once the
// speed decays to zero. No-op when already idle.
func (c *Controller) Stop() error {
	if c.state == StateIdle {
		return nil
	}

	c.target = 0
	c.state = StateStopping
	c.regs.ClearBits(device.RegMotorCtrl, device.MotorCtrlEnable)

	return nil
}

// Brake forces an immediate stop: speed drops to zero and the state goes
// straight to idle. Position is preserved.
func (c *Controller) Brake() error {
	c.target = 0
	c.current = 0
	c.state = StateIdle

	c.regs.SetBits(device.RegMotorCtrl, device.MotorCtrlBrake)
	c.regs.ClearBits(device.RegMotorCtrl, device.MotorCtrlEnable)
	c.regs.Write(device.RegMotorSpeed, 0)
	c.regs.ClearBits(device.RegMotorStatus, device.MotorStatusRunning)

	return nil
}

// SetSpeed updates the target speed; the ramp engine enacts it over the
// following ticks. Rejected while faulted.
func (c *Controller) SetSpeed(speed uint32) error {
	if c.state == StateFault {
		return ErrFaulted
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	c.target = speed
	return nil
}

// Reset pulses the RESET control bit, clears the status and speed
// registers and returns the controller to idle with no fault. The pulse
// is best-effort: observers are not guaranteed to see it. Position is
// deliberately preserved across reset.
func (c *Controller) Reset() error {
	c.regs.Write(device.RegMotorCtrl, device.MotorCtrlReset)
	c.regs.Write(device.RegMotorStatus, 0)
	c.regs.Write(device.RegMotorSpeed, 0)

	c.state = StateIdle
	c.fault = FaultNone
	c.current = 0
	c.target = 0

	c.regs.ClearBits(device.RegMotorCtrl, device.MotorCtrlReset)

	return nil
}

// Update runs one tick of the state machine.
//
// Fault bits in the status register are checked first: any of FAULT,
// STALL or OVERHEAT trips the machine into the fault state with priority
// stall > overheat > overcurrent (a bare FAULT bit maps to overcurrent).
func (c *Controller) Update() {
	status := c.regs.Read(device.RegMotorStatus)
	if status&(device.MotorStatusFault|device.MotorStatusStall|device.MotorStatusOverheat) != 0 {
		if c.state != StateFault {
			c.state = StateFault
			switch {
			case status&device.MotorStatusStall != 0:
				c.fault = FaultStall
			case status&device.MotorStatusOverheat != 0:
				c.fault = FaultOverheat
			default:
				c.fault = FaultOvercurrent
			}
		}
		return
	}

	switch c.state {
	case StateIdle:
		// Nothing to do.

	case StateStarting:
		if c.current < c.target {
			c.current += RampRate
			if c.current >= c.target {
				c.current = c.target
				c.state = StateRunning
			}
		} else {
			c.state = StateRunning
		}
		c.regs.Write(device.RegMotorSpeed, c.current)
		c.regs.SetBits(device.RegMotorStatus, device.MotorStatusRunning)

	case StateRunning:
		// Track target changes with clamp-to-target on overshoot.
		if c.current < c.target {
			c.current += RampRate
			if c.current > c.target {
				c.current = c.target
			}
		} else if c.current > c.target {
			c.current -= RampRate
			if c.current < c.target {
				c.current = c.target
			}
		}
		c.regs.Write(device.RegMotorSpeed, c.current)

		if c.direction == DirCW {
			c.position += int32(c.current / 100)
		} else {
			c.position -= int32(c.current / 100)
		}
		c.regs.Write(device.RegMotorPosition, uint32(c.position))

	case StateStopping:
		if c.current > RampRate {
			c.current -= RampRate
		} else {
			c.current = 0
			c.state = StateIdle
			c.regs.ClearBits(device.RegMotorStatus, device.MotorStatusRunning)
		}
		c.regs.Write(device.RegMotorSpeed, c.current)

	case StateFault:
		// Held until ClearFault.

	case StateRecovery:
		// Recovery is a single-tick state.
		c.state = StateIdle
	}
}

// InjectFault forces the fault state and raises the fault-specific
// status bit, as a stalled or overheated part would.
func (c *Controller) InjectFault(fault Fault) {
	c.fault = fault
	c.state = StateFault

	switch fault {
	case FaultStall:
		c.regs.SetBits(device.RegMotorStatus, device.MotorStatusStall)
	case FaultOverheat:
		c.regs.SetBits(device.RegMotorStatus, device.MotorStatusOverheat)
	case FaultOvercurrent:
		c.regs.SetBits(device.RegMotorStatus, device.MotorStatusFault)
	}
}

// ClearFault acknowledges a fault. The machine passes through recovery
// and reaches idle on the next tick. No-op outside the fault state.
func (c *Controller) ClearFault() error {
	if c.state != StateFault {
		return nil
	}

	c.fault = FaultNone
	c.state = StateRecovery
	c.regs.Write(device.RegMotorStatus, 0)

	return nil
}

func (c *Controller) State() State         { return c.state }
func (c *Controller) Fault() Fault         { return c.fault }
func (c *Controller) Speed() uint32        { return c.current }
func (c *Controller) TargetSpeed() uint32  { return c.target }
func (c *Controller) Position() int32      { return c.position }
func (c *Controller) Direction() Direction { return c.direction }

// IsRunning reports whether the motor is spinning up or at speed.
func (c *Controller) IsRunning() bool {
	return c.state == StateRunning || c.state == StateStarting
}
