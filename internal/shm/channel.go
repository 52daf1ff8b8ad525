// Package shm implements the cross-process command/status channel: a
// single-slot command mailbox, a single-slot response mailbox and a
// status snapshot, coordinated by a mutex and two condition variables
// living in the shared region itself.
//
// Two backends exist behind the Channel interface: a POSIX shared-memory
// backend (futex-based, Linux) and an in-process backend for hosts
// without POSIX-style shared memory. The protocol is identical.
package shm

import (
	"errors"

	"github.com/tamzrod/motor-driver/internal/status"
)

// DefaultName is the shared region name used by the driver and clients.
const DefaultName = "motor_driver_shm"

// CommandKind identifies a request in the command slot.
type CommandKind uint32

const (
	CmdNone CommandKind = iota
	CmdMotorStart
	CmdMotorStop
	CmdMotorSetSpeed
	CmdSensorRead
	CmdGetStatus
	CmdReset
)

// ResponseStatus is the worker's verdict on a command.
type ResponseStatus uint32

const (
	RespOK ResponseStatus = iota
	RespError
	RespBusy
	RespInvalidCommand
)

// MaxResponseWords is the response payload capacity.
const MaxResponseWords = 8

var (
	// ErrNilChannel is returned by operations on a nil channel.
	ErrNilChannel = errors.New("shm: nil channel")

	// ErrShutdown is the terminal sentinel observed by peers blocked in
	// a rendezvous when shutdown is requested.
	ErrShutdown = errors.New("shm: shutdown requested")

	// ErrNoCommand is the non-blocking poll sentinel: the command slot
	// is empty.
	ErrNoCommand = errors.New("shm: no command pending")
)

// Command is one request read out of the command slot.
type Command struct {
	Kind   CommandKind
	Param1 uint32
	Param2 uint32
}

// Response is one reply read out of the response slot.
type Response struct {
	Status ResponseStatus
	Data   [MaxResponseWords]int32
	Count  int
}

// Channel is the rendezvous between the controller and the worker.
// Commands and responses are strictly paired: a new command may not be
// queued while a prior one has no delivered response. The status
// snapshot is independent and may be updated at any time.
type Channel interface {
	// SendCommand fills the command slot, waiting for any prior command
	// to complete first.
	SendCommand(kind CommandKind, p1, p2 uint32) error

	// GetCommand blocks until a command is pending, returning
	// ErrShutdown if shutdown is requested first.
	GetCommand() (Command, error)

	// TryGetCommand polls the command slot without blocking, returning
	// ErrNoCommand when it is empty. The tick loop must use this so the
	// update cadence is never stalled.
	TryGetCommand() (Command, error)

	// SendResponse copies up to MaxResponseWords payload words, clears
	// the pending command and wakes waiting senders.
	SendResponse(st ResponseStatus, data []int32) error

	// WaitResponse blocks until a response is ready and consumes it.
	WaitResponse() (Response, error)

	// UpdateStatus publishes a status snapshot atomically.
	UpdateStatus(snap status.Snapshot) error

	// ReadStatus returns the last published snapshot.
	ReadStatus() (status.Snapshot, error)

	// IsShutdownRequested reports the shutdown flag. Fail-safe: a nil
	// or detached channel reads as shut down.
	IsShutdownRequested() bool

	// RequestShutdown sets the shutdown flag and wakes every blocked
	// peer.
	RequestShutdown()

	// Close detaches without releasing the OS resource.
	Close()

	// Destroy releases the OS resource. Owner only.
	Destroy()
}
