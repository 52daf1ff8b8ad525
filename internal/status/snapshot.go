package status

// Snapshot is the most-recent motor and sensor state published for
// external observers. It contains no logic and no memory of the past
// beyond current state.
type Snapshot struct {
	MotorState    uint32
	MotorSpeed    uint32
	MotorPosition int32
	SensorValues  [SensorSlots]int32
	FaultCode     uint32
}
