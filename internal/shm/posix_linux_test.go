//go:build linux

package shm

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/tamzrod/motor-driver/internal/status"
)

func newPosixPair(t *testing.T) (owner, peer Channel) {
	t.Helper()
	name := fmt.Sprintf("motor_driver_test_%d", os.Getpid())

	owner, err := Create(name)
	if err != nil {
		t.Skipf("posix shared memory unavailable: %v", err)
	}
	t.Cleanup(owner.Destroy)

	peer, err = OpenExisting(name)
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	t.Cleanup(peer.Close)
	return owner, peer
}

func TestPosixRoundTrip(t *testing.T) {
	ctl, wrk := newPosixPair(t)

	if err := ctl.SendCommand(CmdMotorStart, 3000, 1); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	cmd, err := wrk.TryGetCommand()
	if err != nil {
		t.Fatalf("TryGetCommand: %v", err)
	}
	if cmd.Kind != CmdMotorStart || cmd.Param1 != 3000 || cmd.Param2 != 1 {
		t.Fatalf("command = %+v", cmd)
	}

	if err := wrk.SendResponse(RespOK, []int32{1, 2, 3, 4}); err != nil {
		t.Fatalf("SendResponse: %v", err)
	}

	resp, err := ctl.WaitResponse()
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if resp.Status != RespOK || resp.Count != 4 || resp.Data[3] != 4 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestPosixBlockingRendezvous(t *testing.T) {
	ctl, wrk := newPosixPair(t)

	got := make(chan Command, 1)
	go func() {
		cmd, err := wrk.GetCommand()
		if err != nil {
			return
		}
		got <- cmd
		wrk.SendResponse(RespOK, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := ctl.SendCommand(CmdReset, 0, 0); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	select {
	case cmd := <-got:
		if cmd.Kind != CmdReset {
			t.Fatalf("kind = %v, want reset", cmd.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker never woke for the command")
	}

	if _, err := ctl.WaitResponse(); err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
}

func TestPosixShutdownWakesWaiter(t *testing.T) {
	ctl, wrk := newPosixPair(t)

	errc := make(chan error, 1)
	go func() {
		_, err := wrk.GetCommand()
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	ctl.RequestShutdown()

	select {
	case err := <-errc:
		if err != ErrShutdown {
			t.Fatalf("err = %v, want ErrShutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not wake the blocked peer")
	}
}

func TestPosixStatusBlock(t *testing.T) {
	ctl, wrk := newPosixPair(t)

	snap := status.Snapshot{
		MotorState:    1,
		MotorSpeed:    7500,
		MotorPosition: -99,
		SensorValues:  [4]int32{9, 8, 7, 6},
		FaultCode:     2,
	}
	if err := ctl.UpdateStatus(snap); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := wrk.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got != snap {
		t.Fatalf("snapshot = %+v, want %+v", got, snap)
	}
}

func TestPosixDestroyUnlinks(t *testing.T) {
	name := fmt.Sprintf("motor_driver_unlink_%d", os.Getpid())
	c, err := Create(name)
	if err != nil {
		t.Skipf("posix shared memory unavailable: %v", err)
	}
	c.Destroy()

	if _, err := os.Stat(shmPath(name)); !os.IsNotExist(err) {
		t.Fatalf("region file still present after Destroy: %v", err)
	}
}
