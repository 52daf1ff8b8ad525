package status

// Status block layout constants.
// These values define the shared-region protocol and MUST NOT be
// configurable.

// ---- SLOT INDICES ----

// SlotMotorState holds the motor state machine state.
const SlotMotorState = 0

// SlotMotorSpeed holds the current motor speed in RPM.
const SlotMotorSpeed = 1

// SlotMotorPosition holds the signed position accumulator.
const SlotMotorPosition = 2

// SlotSensorStart is the first slot of the sensor value block.
const SlotSensorStart = 3

// SensorSlots is the number of slots in the sensor value block.
const SensorSlots = 4

// SlotFaultCode holds the motor fault code.
const SlotFaultCode = SlotSensorStart + SensorSlots

// ---- BLOCK GEOMETRY ----

// BlockWords is the fixed number of words in an encoded status block.
const BlockWords = SlotFaultCode + 1
