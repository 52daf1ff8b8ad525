// motorctl talks to a running motord over the shared channel.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/tamzrod/motor-driver/internal/motor"
	"github.com/tamzrod/motor-driver/internal/shm"
)

var cli struct {
	Shm string `name:"shm" default:"motor_driver_shm" help:"shared region name"`

	Start    startCmd    `cmd:"" help:"start the motor"`
	Stop     stopCmd     `cmd:"" help:"ramp the motor down to idle"`
	Speed    speedCmd    `cmd:"" help:"change the target speed"`
	Status   statusCmd   `cmd:"" help:"query motor status"`
	Sensors  sensorsCmd  `cmd:"" help:"read all sensor values"`
	Reset    resetCmd    `cmd:"" help:"reset the motor and clear the sensor buffer"`
	Shutdown shutdownCmd `cmd:"" help:"ask the driver to shut down"`
}

func main() {
	ctx := kong.Parse(&cli)
	ctx.FatalIfErrorf(ctx.Run())
}

// roundTrip opens the existing channel, sends one command and waits for
// its paired response.
func roundTrip(kind shm.CommandKind, p1, p2 uint32) (shm.Response, error) {
	ch, err := shm.OpenExisting(cli.Shm)
	if err != nil {
		return shm.Response{}, fmt.Errorf("is motord running? %w", err)
	}
	defer ch.Close()

	if err := ch.SendCommand(kind, p1, p2); err != nil {
		return shm.Response{}, err
	}
	return ch.WaitResponse()
}

func checkStatus(resp shm.Response) error {
	switch resp.Status {
	case shm.RespOK:
		return nil
	case shm.RespBusy:
		return fmt.Errorf("driver busy")
	case shm.RespInvalidCommand:
		return fmt.Errorf("driver rejected the command as invalid")
	default:
		return fmt.Errorf("driver reported an error")
	}
}

type startCmd struct {
	RPM uint32 `arg:"" help:"target speed in RPM"`
	CCW bool   `help:"spin counter-clockwise"`
}

func (c *startCmd) Run() error {
	dir := uint32(1)
	if c.CCW {
		dir = 0
	}
	resp, err := roundTrip(shm.CmdMotorStart, c.RPM, dir)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	fmt.Println("motor starting")
	return nil
}

type stopCmd struct{}

func (c *stopCmd) Run() error {
	resp, err := roundTrip(shm.CmdMotorStop, 0, 0)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	fmt.Println("motor stopping")
	return nil
}

type speedCmd struct {
	RPM uint32 `arg:"" help:"new target speed in RPM"`
}

func (c *speedCmd) Run() error {
	resp, err := roundTrip(shm.CmdMotorSetSpeed, c.RPM, 0)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	fmt.Printf("target speed set to %d\n", c.RPM)
	return nil
}

type statusCmd struct{}

func (c *statusCmd) Run() error {
	resp, err := roundTrip(shm.CmdGetStatus, 0, 0)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	fmt.Printf("state:    %s\n", motor.State(resp.Data[0]))
	fmt.Printf("speed:    %d RPM\n", resp.Data[1])
	fmt.Printf("position: %d\n", resp.Data[2])
	fmt.Printf("fault:    %s\n", motor.Fault(resp.Data[3]))
	return nil
}

type sensorsCmd struct{}

func (c *sensorsCmd) Run() error {
	resp, err := roundTrip(shm.CmdSensorRead, 0, 0)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	names := []string{"position", "velocity", "temperature", "current"}
	for i, name := range names {
		fmt.Printf("%-12s %d\n", name, resp.Data[i])
	}
	return nil
}

type resetCmd struct{}

func (c *resetCmd) Run() error {
	resp, err := roundTrip(shm.CmdReset, 0, 0)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	fmt.Println("driver reset")
	return nil
}

type shutdownCmd struct{}

func (c *shutdownCmd) Run() error {
	ch, err := shm.OpenExisting(cli.Shm)
	if err != nil {
		return fmt.Errorf("is motord running? %w", err)
	}
	defer ch.Close()

	ch.RequestShutdown()
	fmt.Println("shutdown requested")
	return nil
}
