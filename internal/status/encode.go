package status

// Encode converts a Snapshot into a status block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot) []uint32 {
	words := make([]uint32, BlockWords)

	words[SlotMotorState] = s.MotorState
	words[SlotMotorSpeed] = s.MotorSpeed
	words[SlotMotorPosition] = uint32(s.MotorPosition)
	for i, v := range s.SensorValues {
		words[SlotSensorStart+i] = uint32(v)
	}
	words[SlotFaultCode] = s.FaultCode

	return words
}

// Decode rebuilds a Snapshot from an encoded block. Short input yields
// a zero Snapshot.
func Decode(words []uint32) Snapshot {
	var s Snapshot
	if len(words) < BlockWords {
		return s
	}

	s.MotorState = words[SlotMotorState]
	s.MotorSpeed = words[SlotMotorSpeed]
	s.MotorPosition = int32(words[SlotMotorPosition])
	for i := range s.SensorValues {
		s.SensorValues[i] = int32(words[SlotSensorStart+i])
	}
	s.FaultCode = words[SlotFaultCode]

	return s
}
