package driver

import (
	"testing"

	"github.com/tamzrod/motor-driver/internal/irq"
	"github.com/tamzrod/motor-driver/internal/motor"
	"github.com/tamzrod/motor-driver/internal/shm"
)

func newDriver(t *testing.T) (*Driver, shm.Channel) {
	t.Helper()
	ch, err := shm.CreateInProcess("test_" + t.Name())
	if err != nil {
		t.Fatalf("CreateInProcess: %v", err)
	}
	t.Cleanup(ch.Destroy)

	d, err := New(ch)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.IRQ().Cleanup)
	return d, ch
}

func TestNewNilChannel(t *testing.T) {
	if _, err := New(nil); err != ErrNilChannel {
		t.Fatalf("New(nil) err = %v, want ErrNilChannel", err)
	}
}

func TestStartCruiseStopOverChannel(t *testing.T) {
	d, ch := newDriver(t)

	peer, err := shm.OpenInProcess("test_" + t.Name())
	if err != nil {
		t.Fatalf("OpenInProcess: %v", err)
	}

	// Controller queues a start; the next tick services it.
	if err := peer.SendCommand(shm.CmdMotorStart, 5000, 1); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	d.TickOnce()

	resp, err := peer.WaitResponse()
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if resp.Status != shm.RespOK {
		t.Fatalf("start response = %v", resp.Status)
	}

	for i := 0; i < 20; i++ {
		d.TickOnce()
	}
	if d.Motor().State() != motor.StateRunning {
		t.Fatalf("state = %v, want running", d.Motor().State())
	}
	if d.Motor().Speed() != 5000 {
		t.Fatalf("speed = %d, want 5000", d.Motor().Speed())
	}

	// The published snapshot tracks the motor.
	snap, err := ch.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if snap.MotorState != uint32(motor.StateRunning) || snap.MotorSpeed != 5000 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := peer.SendCommand(shm.CmdMotorStop, 0, 0); err != nil {
		t.Fatalf("SendCommand stop: %v", err)
	}
	d.TickOnce()
	if _, err := peer.WaitResponse(); err != nil {
		t.Fatalf("WaitResponse stop: %v", err)
	}

	for i := 0; i < 20; i++ {
		d.TickOnce()
	}
	if d.Motor().State() != motor.StateIdle {
		t.Fatalf("state = %v, want idle", d.Motor().State())
	}
}

func TestStartWhileFaultedRespondsError(t *testing.T) {
	d, ch := newDriver(t)

	d.Motor().InjectFault(motor.FaultStall)

	if err := ch.SendCommand(shm.CmdMotorStart, 1000, 1); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	d.TickOnce()

	resp, err := ch.WaitResponse()
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if resp.Status != shm.RespError {
		t.Fatalf("status = %v, want error", resp.Status)
	}
}

func TestSensorReadCommand(t *testing.T) {
	d, ch := newDriver(t)

	d.Sensors().Enable()
	d.Sensors().SetSimulatedValue(2, 9999)

	// Tick 0 triggers an acquisition and completes it in the same pass.
	d.TickOnce()

	if err := ch.SendCommand(shm.CmdSensorRead, 0, 0); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	d.TickOnce()

	resp, err := ch.WaitResponse()
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if resp.Status != shm.RespOK {
		t.Fatalf("status = %v", resp.Status)
	}
	if resp.Data[2] != 125 {
		t.Fatalf("temperature = %d, want clamped 125", resp.Data[2])
	}
}

func TestGetStatusCommand(t *testing.T) {
	d, ch := newDriver(t)

	if err := d.Motor().Start(2000, motor.DirCW); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 10; i++ {
		d.TickOnce()
	}

	if err := ch.SendCommand(shm.CmdGetStatus, 0, 0); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	d.TickOnce()

	resp, err := ch.WaitResponse()
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if resp.Data[0] != int32(motor.StateRunning) {
		t.Fatalf("reported state = %d", resp.Data[0])
	}
	if resp.Data[1] != 2000 {
		t.Fatalf("reported speed = %d", resp.Data[1])
	}
	if resp.Data[2] <= 0 {
		t.Fatalf("reported position = %d, want positive", resp.Data[2])
	}
}

func TestResetCommandClearsBuffer(t *testing.T) {
	d, ch := newDriver(t)

	d.Sensors().BufferPush(1)
	d.Sensors().BufferPush(2)

	if err := ch.SendCommand(shm.CmdReset, 0, 0); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	d.TickOnce()
	if _, err := ch.WaitResponse(); err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}

	if d.Sensors().BufferCount() != 0 {
		t.Fatalf("buffer count = %d after reset", d.Sensors().BufferCount())
	}
	if d.Motor().State() != motor.StateIdle {
		t.Fatalf("state = %v after reset", d.Motor().State())
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	d, ch := newDriver(t)

	if err := ch.SendCommand(shm.CommandKind(99), 0, 0); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	d.TickOnce()

	resp, err := ch.WaitResponse()
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if resp.Status != shm.RespInvalidCommand {
		t.Fatalf("status = %v, want invalid command", resp.Status)
	}
}

func TestFaultRePendsIRQ(t *testing.T) {
	d, _ := newDriver(t)

	calls := 0
	d.IRQ().RegisterHandler(irq.SrcMotorFault, func(irq.Source, any) { calls++ }, nil)
	d.IRQ().Enable(irq.SrcMotorFault)

	d.Motor().InjectFault(motor.FaultOverheat)
	d.TickOnce()

	if calls != 1 {
		t.Fatalf("fault handler calls = %d, want 1", calls)
	}
	if d.IRQ().PendingMask() != 0 {
		t.Fatalf("pending mask = %#x after tick", d.IRQ().PendingMask())
	}

	// The fault persists, so every tick re-pends and re-dispatches.
	d.TickOnce()
	if calls != 2 {
		t.Fatalf("fault handler calls = %d, want 2", calls)
	}
}

func TestTickCountsAndCadence(t *testing.T) {
	d, _ := newDriver(t)
	d.Sensors().Enable()

	// Ticks 0..10 include two trigger ticks (0 and 10); each trigger
	// bumps every channel's sample count once.
	for i := 0; i < 11; i++ {
		d.TickOnce()
	}
	if got := d.Sensors().SampleCount(0); got != 2 {
		t.Fatalf("sample count = %d, want 2", got)
	}
	if d.Tick() != 11 {
		t.Fatalf("tick = %d, want 11", d.Tick())
	}
}
