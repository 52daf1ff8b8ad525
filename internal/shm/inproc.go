package shm

import (
	"fmt"
	"sync"

	"github.com/tamzrod/motor-driver/internal/status"
)

// In-process backend: the same rendezvous protocol over sync primitives,
// for hosts without POSIX-style shared memory and for tests. Create
// registers the record in a process-global table that OpenExisting
// attaches to, mirroring the named-region lifecycle.

var (
	memRegistry   = map[string]*memRecord{}
	memRegistryMu sync.Mutex
)

type memRecord struct {
	mu        sync.Mutex
	cmdReady  *sync.Cond
	respReady *sync.Cond

	cmd        Command
	cmdPending bool

	resp          Response
	respReadyFlag bool

	snap status.Snapshot

	shutdown bool
}

type memChannel struct {
	name string
	rec  *memRecord
}

// CreateInProcess allocates a new in-process channel record under name.
func CreateInProcess(name string) (Channel, error) {
	memRegistryMu.Lock()
	defer memRegistryMu.Unlock()

	if _, exists := memRegistry[name]; exists {
		return nil, fmt.Errorf("shm: region %q already exists", name)
	}

	rec := &memRecord{}
	rec.cmdReady = sync.NewCond(&rec.mu)
	rec.respReady = sync.NewCond(&rec.mu)
	memRegistry[name] = rec

	return &memChannel{name: name, rec: rec}, nil
}

// OpenInProcess attaches to an already-created in-process record.
func OpenInProcess(name string) (Channel, error) {
	memRegistryMu.Lock()
	defer memRegistryMu.Unlock()

	rec, exists := memRegistry[name]
	if !exists {
		return nil, fmt.Errorf("shm: region %q does not exist", name)
	}

	return &memChannel{name: name, rec: rec}, nil
}

func (c *memChannel) SendCommand(kind CommandKind, p1, p2 uint32) error {
	if c == nil || c.rec == nil {
		return ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	defer r.mu.Unlock()

	// Wait for the previous command to be answered.
	for r.cmdPending && !r.shutdown {
		r.respReady.Wait()
	}
	if r.shutdown {
		return ErrShutdown
	}

	r.cmd = Command{Kind: kind, Param1: p1, Param2: p2}
	r.cmdPending = true
	r.respReadyFlag = false

	r.cmdReady.Signal()
	return nil
}

func (c *memChannel) GetCommand() (Command, error) {
	if c == nil || c.rec == nil {
		return Command{}, ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.cmdPending && !r.shutdown {
		r.cmdReady.Wait()
	}
	if r.shutdown {
		return Command{}, ErrShutdown
	}

	return r.cmd, nil
}

func (c *memChannel) TryGetCommand() (Command, error) {
	if c == nil || c.rec == nil {
		return Command{}, ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return Command{}, ErrShutdown
	}
	if !r.cmdPending {
		return Command{}, ErrNoCommand
	}

	return r.cmd, nil
}

func (c *memChannel) SendResponse(st ResponseStatus, data []int32) error {
	if c == nil || c.rec == nil {
		return ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	defer r.mu.Unlock()

	r.resp = Response{Status: st}
	n := len(data)
	if n > MaxResponseWords {
		n = MaxResponseWords
	}
	copy(r.resp.Data[:], data[:n])
	r.resp.Count = n

	r.cmdPending = false
	r.respReadyFlag = true

	r.respReady.Broadcast()
	return nil
}

func (c *memChannel) WaitResponse() (Response, error) {
	if c == nil || c.rec == nil {
		return Response{}, ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.respReadyFlag && !r.shutdown {
		r.respReady.Wait()
	}
	if r.shutdown {
		return Response{}, ErrShutdown
	}

	resp := r.resp
	r.respReadyFlag = false

	// Unblock any follow-up sender waiting on the slot.
	r.respReady.Signal()
	return resp, nil
}

func (c *memChannel) UpdateStatus(snap status.Snapshot) error {
	if c == nil || c.rec == nil {
		return ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return nil
}

func (c *memChannel) ReadStatus() (status.Snapshot, error) {
	if c == nil || c.rec == nil {
		return status.Snapshot{}, ErrNilChannel
	}
	r := c.rec

	r.mu.Lock()
	snap := r.snap
	r.mu.Unlock()
	return snap, nil
}

func (c *memChannel) IsShutdownRequested() bool {
	if c == nil || c.rec == nil {
		return true
	}
	r := c.rec

	r.mu.Lock()
	shutdown := r.shutdown
	r.mu.Unlock()
	return shutdown
}

func (c *memChannel) RequestShutdown() {
	if c == nil || c.rec == nil {
		return
	}
	r := c.rec

	r.mu.Lock()
	r.shutdown = true
	r.cmdReady.Broadcast()
	r.respReady.Broadcast()
	r.mu.Unlock()
}

func (c *memChannel) Close() {
	if c == nil {
		return
	}
	c.rec = nil
}

func (c *memChannel) Destroy() {
	if c == nil || c.rec == nil {
		return
	}

	memRegistryMu.Lock()
	if memRegistry[c.name] == c.rec {
		delete(memRegistry, c.name)
	}
	memRegistryMu.Unlock()

	c.rec = nil
}
