package sensor

import (
	"errors"

	"github.com/tamzrod/motor-driver/internal/device"
)

// Count is the number of sensors in the array.
const Count = 4

// Type identifies what a sensor measures.
type Type uint32

const (
	TypePosition Type = iota
	TypeVelocity
	TypeTemperature
	TypeCurrent
)

// State of an individual sensor.
type State uint32

const (
	StateDisabled State = iota
	StateIdle
	StateSampling
	StateError
)

var (
	// ErrNilRegs is returned when no register file is supplied.
	ErrNilRegs = errors.New("sensor: nil register file")

	// ErrDisabled rejects a trigger while the array is not enabled.
	ErrDisabled = errors.New("sensor: array is disabled")

	// ErrOverflow reports a push into a full ring buffer. The OVERFLOW
	// status bit is raised and stays set until BufferClear.
	ErrOverflow = errors.New("sensor: buffer overflow")

	// ErrEmpty reports a pop from an empty ring buffer.
	ErrEmpty = errors.New("sensor: buffer empty")
)

type sensorChannel struct {
	typ         Type
	state       State
	value       int32
	minValue    int32
	maxValue    int32
	sampleCount uint32
}

// Array owns the four-channel acquisition subsystem. All channels share
// the sensor control/data/status register triple; sampled values are
// clamped to per-channel ranges and, in continuous mode, streamed into
// the ring buffer.
//
// Array is not safe for concurrent use; it belongs to the tick loop.
type Array struct {
	regs       *device.File
	sensors    [Count]sensorChannel
	buffer     ringBuffer
	continuous bool
}

// New attaches an array to regs, loads the fixed per-channel ranges and
// clears the sensor registers. All channels start disabled.
func New(regs *device.File) (*Array, error) {
	if regs == nil {
		return nil, ErrNilRegs
	}

	a := &Array{regs: regs}
	a.sensors[0] = sensorChannel{typ: TypePosition, minValue: -10000, maxValue: 10000}
	a.sensors[1] = sensorChannel{typ: TypeVelocity, minValue: 0, maxValue: 10000}
	a.sensors[2] = sensorChannel{typ: TypeTemperature, minValue: -40, maxValue: 125}
	a.sensors[3] = sensorChannel{typ: TypeCurrent, minValue: 0, maxValue: 5000}

	regs.Write(device.RegSensorCtrl, 0)
	regs.Write(device.RegSensorData, 0)
	regs.Write(device.RegSensorStatus, 0)

	return a, nil
}

// Enable moves every channel to idle and raises ENABLE and READY.
func (a *Array) Enable() {
	for i := range a.sensors {
		a.sensors[i].state = StateIdle
	}
	a.regs.SetBits(device.RegSensorCtrl, device.SensorCtrlEnable)
	a.regs.SetBits(device.RegSensorStatus, device.SensorStatusReady)
}

// Disable moves every channel to disabled and clears ENABLE and READY.
func (a *Array) Disable() {
	for i := range a.sensors {
		a.sensors[i].state = StateDisabled
	}
	a.regs.ClearBits(device.RegSensorCtrl, device.SensorCtrlEnable)
	a.regs.ClearBits(device.RegSensorStatus, device.SensorStatusReady)
}

// Trigger starts an acquisition on every idle channel. The ENABLE bit
// must be set in the control register.
func (a *Array) Trigger() error {
	if a.regs.Read(device.RegSensorCtrl)&device.SensorCtrlEnable == 0 {
		return ErrDisabled
	}

	a.regs.SetBits(device.RegSensorCtrl, device.SensorCtrlTrigger)

	for i := range a.sensors {
		if a.sensors[i].state == StateIdle {
			a.sensors[i].state = StateSampling
			a.sensors[i].sampleCount++
		}
	}

	return nil
}

// SetContinuous records free-running mode and mirrors the CONTINUOUS bit.
func (a *Array) SetContinuous(enable bool) {
	a.continuous = enable
	if enable {
		a.regs.SetBits(device.RegSensorCtrl, device.SensorCtrlContinuous)
	} else {
		a.regs.ClearBits(device.RegSensorCtrl, device.SensorCtrlContinuous)
	}
}

// Read returns the current value of channel id, or 0 for a bad id.
func (a *Array) Read(id int) int32 {
	if id < 0 || id >= Count {
		return 0
	}
	return a.sensors[id].value
}

// ReadAll copies up to len(dst) channel values into dst and returns the
// number copied.
func (a *Array) ReadAll(dst []int32) int {
	n := len(dst)
	if n > Count {
		n = Count
	}
	for i := 0; i < n; i++ {
		dst[i] = a.sensors[i].value
	}
	return n
}

// Update completes every in-flight acquisition: the raw value is clamped
// to the channel range and the channel returns to idle. In continuous
// mode each completed sample is pushed into the ring buffer; a full
// buffer drops the value and leaves the sticky OVERFLOW bit set. The
// TRIGGER bit is cleared afterwards, and a new acquisition starts
// immediately when continuous mode is on and the array is still ready.
func (a *Array) Update() {
	for i := range a.sensors {
		s := &a.sensors[i]
		if s.state != StateSampling {
			continue
		}
		s.state = StateIdle

		if s.value < s.minValue {
			s.value = s.minValue
		}
		if s.value > s.maxValue {
			s.value = s.maxValue
		}

		// Side channel for observers; core logic never reads it back.
		a.regs.Write(device.RegSensorData, uint32(s.value))

		if a.continuous {
			a.BufferPush(s.value)
		}
	}

	a.regs.ClearBits(device.RegSensorCtrl, device.SensorCtrlTrigger)

	if a.continuous && a.IsReady() {
		a.Trigger()
	}
}

// BufferPush appends value to the ring buffer. On overflow the value is
// dropped and the OVERFLOW status bit raised.
func (a *Array) BufferPush(value int32) error {
	if !a.buffer.push(value) {
		a.regs.SetBits(device.RegSensorStatus, device.SensorStatusOverflow)
		return ErrOverflow
	}
	return nil
}

// BufferPop removes and returns the oldest buffered value.
func (a *Array) BufferPop() (int32, error) {
	v, ok := a.buffer.pop()
	if !ok {
		return 0, ErrEmpty
	}
	return v, nil
}

// BufferCount returns the ring buffer occupancy.
func (a *Array) BufferCount() int {
	return a.buffer.count()
}

// BufferClear drops all buffered values and clears the OVERFLOW bit.
func (a *Array) BufferClear() {
	a.buffer.clear()
	a.regs.ClearBits(device.RegSensorStatus, device.SensorStatusOverflow)
}

// SensorState returns the state of channel id, or StateError for a bad
// id.
func (a *Array) SensorState(id int) State {
	if id < 0 || id >= Count {
		return StateError
	}
	return a.sensors[id].state
}

// SampleCount returns how many acquisitions channel id has started.
func (a *Array) SampleCount(id int) uint32 {
	if id < 0 || id >= Count {
		return 0
	}
	return a.sensors[id].sampleCount
}

// IsReady reports the READY status bit.
func (a *Array) IsReady() bool {
	return a.regs.Read(device.RegSensorStatus)&device.SensorStatusReady != 0
}

// HasError reports the ERROR status bit.
func (a *Array) HasError() bool {
	return a.regs.Read(device.RegSensorStatus)&device.SensorStatusError != 0
}

// SetSimulatedValue injects a raw pre-clamp value into channel id. The
// next Update pass clamps it. This is the deterministic input point for
// tests and the demo.
func (a *Array) SetSimulatedValue(id int, value int32) {
	if id < 0 || id >= Count {
		return
	}
	a.sensors[id].value = value
}
