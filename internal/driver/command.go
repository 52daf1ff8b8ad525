package driver

import (
	"github.com/tamzrod/motor-driver/internal/motor"
	"github.com/tamzrod/motor-driver/internal/sensor"
	"github.com/tamzrod/motor-driver/internal/shm"
)

// serviceCommand executes one request from the command slot and delivers
// its paired response. Soft rejections from the motor map to an error
// response, never to a dropped command.
func (d *Driver) serviceCommand(cmd shm.Command) {
	var data [shm.MaxResponseWords]int32
	st := shm.RespOK

	switch cmd.Kind {
	case shm.CmdMotorStart:
		dir := motor.DirCCW
		if cmd.Param2 != 0 {
			dir = motor.DirCW
		}
		if err := d.motor.Start(cmd.Param1, dir); err != nil {
			st = shm.RespError
		}

	case shm.CmdMotorStop:
		if err := d.motor.Stop(); err != nil {
			st = shm.RespError
		}

	case shm.CmdMotorSetSpeed:
		if err := d.motor.SetSpeed(cmd.Param1); err != nil {
			st = shm.RespError
		}

	case shm.CmdSensorRead:
		d.sensors.ReadAll(data[:sensor.Count])

	case shm.CmdGetStatus:
		data[0] = int32(d.motor.State())
		data[1] = int32(d.motor.Speed())
		data[2] = d.motor.Position()
		data[3] = int32(d.motor.Fault())

	case shm.CmdReset:
		d.motor.Reset()
		d.sensors.BufferClear()

	default:
		st = shm.RespInvalidCommand
	}

	d.logf("command %d serviced: status=%d", cmd.Kind, st)
	d.ch.SendResponse(st, data[:])
}
