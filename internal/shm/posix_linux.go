//go:build linux

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tamzrod/motor-driver/internal/status"
)

// POSIX shared-memory backend. The channel record is a fixed word-slot
// layout inside a 4096-byte region under /dev/shm; mutex and condition
// variables are futex words inside the region itself, initialized with
// process-shared semantics by construction.

// ---- RECORD LAYOUT (word slots) ----

const (
	slotLock     = 0 // futex mutex word
	slotCmdSeq   = 1 // cmd_ready condvar sequence
	slotRespSeq  = 2 // resp_ready condvar sequence
	slotCmdKind  = 3
	slotCmdP1    = 4
	slotCmdP2    = 5
	slotCmdPend  = 6
	slotRespStat = 7
	slotRespN    = 8
	slotRespData = 9 // MaxResponseWords words

	slotStatus   = slotRespData + MaxResponseWords // status.BlockWords words
	slotRespRdy  = slotStatus + status.BlockWords
	slotShutdown = slotRespRdy + 1

	recordWords = slotShutdown + 1
)

// regionSize is the mapped size; generously larger than the record.
const regionSize = 4096

type posixChannel struct {
	name  string
	data  []byte
	words *[recordWords]uint32
}

func shmPath(name string) string {
	return "/dev/shm/" + name
}

// Create allocates and maps the named region, initializes the record and
// returns the owning channel.
func Create(name string) (Channel, error) {
	c, err := attach(name, unix.O_CREAT|unix.O_RDWR)
	if err != nil {
		return nil, err
	}

	// A fresh file is zero-filled by ftruncate; reset explicitly in
	// case a stale region with the same name survived a crash.
	for i := 0; i < recordWords; i++ {
		c.words[i] = 0
	}

	return c, nil
}

// OpenExisting maps an already-created region.
func OpenExisting(name string) (Channel, error) {
	return attach(name, unix.O_RDWR)
}

func attach(name string, flags int) (*posixChannel, error) {
	path := shmPath(name)

	fd, err := unix.Open(path, flags, 0666)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, regionSize); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: ftruncate %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, regionSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(fd)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &posixChannel{
		name:  name,
		data:  data,
		words: (*[recordWords]uint32)(unsafe.Pointer(&data[0])),
	}, nil
}

func (c *posixChannel) lock()   { mutexLock(&c.words[slotLock]) }
func (c *posixChannel) unlock() { mutexUnlock(&c.words[slotLock]) }

func (c *posixChannel) attached() bool {
	return c != nil && c.words != nil
}

func (c *posixChannel) SendCommand(kind CommandKind, p1, p2 uint32) error {
	if !c.attached() {
		return ErrNilChannel
	}
	w := c.words

	c.lock()
	defer c.unlock()

	for w[slotCmdPend] != 0 && w[slotShutdown] == 0 {
		condWait(&w[slotRespSeq], &w[slotLock])
	}
	if w[slotShutdown] != 0 {
		return ErrShutdown
	}

	w[slotCmdKind] = uint32(kind)
	w[slotCmdP1] = p1
	w[slotCmdP2] = p2
	w[slotCmdPend] = 1
	w[slotRespRdy] = 0

	condSignal(&w[slotCmdSeq])
	return nil
}

func (c *posixChannel) GetCommand() (Command, error) {
	if !c.attached() {
		return Command{}, ErrNilChannel
	}
	w := c.words

	c.lock()
	defer c.unlock()

	for w[slotCmdPend] == 0 && w[slotShutdown] == 0 {
		condWait(&w[slotCmdSeq], &w[slotLock])
	}
	if w[slotShutdown] != 0 {
		return Command{}, ErrShutdown
	}

	return c.readCommand(), nil
}

func (c *posixChannel) TryGetCommand() (Command, error) {
	if !c.attached() {
		return Command{}, ErrNilChannel
	}
	w := c.words

	c.lock()
	defer c.unlock()

	if w[slotShutdown] != 0 {
		return Command{}, ErrShutdown
	}
	if w[slotCmdPend] == 0 {
		return Command{}, ErrNoCommand
	}

	return c.readCommand(), nil
}

// readCommand copies the command slot. Caller holds the lock.
func (c *posixChannel) readCommand() Command {
	w := c.words
	return Command{
		Kind:   CommandKind(w[slotCmdKind]),
		Param1: w[slotCmdP1],
		Param2: w[slotCmdP2],
	}
}

func (c *posixChannel) SendResponse(st ResponseStatus, data []int32) error {
	if !c.attached() {
		return ErrNilChannel
	}
	w := c.words

	c.lock()
	defer c.unlock()

	n := len(data)
	if n > MaxResponseWords {
		n = MaxResponseWords
	}

	w[slotRespStat] = uint32(st)
	w[slotRespN] = uint32(n)
	for i := 0; i < n; i++ {
		w[slotRespData+i] = uint32(data[i])
	}

	w[slotCmdPend] = 0
	w[slotRespRdy] = 1

	condBroadcast(&w[slotRespSeq])
	return nil
}

func (c *posixChannel) WaitResponse() (Response, error) {
	if !c.attached() {
		return Response{}, ErrNilChannel
	}
	w := c.words

	c.lock()
	defer c.unlock()

	for w[slotRespRdy] == 0 && w[slotShutdown] == 0 {
		condWait(&w[slotRespSeq], &w[slotLock])
	}
	if w[slotShutdown] != 0 {
		return Response{}, ErrShutdown
	}

	resp := Response{
		Status: ResponseStatus(w[slotRespStat]),
		Count:  int(w[slotRespN]),
	}
	if resp.Count > MaxResponseWords {
		resp.Count = MaxResponseWords
	}
	for i := 0; i < resp.Count; i++ {
		resp.Data[i] = int32(w[slotRespData+i])
	}

	w[slotRespRdy] = 0

	// Unblock any follow-up sender waiting on the slot.
	condSignal(&w[slotRespSeq])
	return resp, nil
}

func (c *posixChannel) UpdateStatus(snap status.Snapshot) error {
	if !c.attached() {
		return ErrNilChannel
	}
	w := c.words

	c.lock()
	copy(w[slotStatus:slotStatus+status.BlockWords], status.Encode(snap))
	c.unlock()
	return nil
}

func (c *posixChannel) ReadStatus() (status.Snapshot, error) {
	if !c.attached() {
		return status.Snapshot{}, ErrNilChannel
	}
	w := c.words

	c.lock()
	snap := status.Decode(w[slotStatus : slotStatus+status.BlockWords])
	c.unlock()
	return snap, nil
}

func (c *posixChannel) IsShutdownRequested() bool {
	if !c.attached() {
		return true
	}
	w := c.words

	c.lock()
	shutdown := w[slotShutdown] != 0
	c.unlock()
	return shutdown
}

func (c *posixChannel) RequestShutdown() {
	if !c.attached() {
		return
	}
	w := c.words

	c.lock()
	w[slotShutdown] = 1
	condBroadcast(&w[slotCmdSeq])
	condBroadcast(&w[slotRespSeq])
	c.unlock()
}

// Close unmaps the region without releasing the OS resource.
func (c *posixChannel) Close() {
	if !c.attached() {
		return
	}
	data := c.data
	c.words = nil
	c.data = nil
	unix.Munmap(data)
}

// Destroy unmaps and unlinks the region. Owner only.
func (c *posixChannel) Destroy() {
	if c == nil {
		return
	}
	c.Close()
	unix.Unlink(shmPath(c.name))
}
