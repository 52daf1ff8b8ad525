//go:build linux

package shm

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Futex-based process-shared mutex and condition variable. The words
// live inside the mapped region, so both processes wait and wake on the
// same kernel futex. FUTEX_PRIVATE_FLAG must not be used here.

// linux/futex.h operation codes. golang.org/x/sys/unix does not export
// these (only the SYS_FUTEX syscall number), so they are declared here
// directly.
const (
	futexWaitOp = 0
	futexWakeOp = 1
)

func futexWait(addr *uint32, val uint32) {
	// EAGAIN (value changed first) and EINTR both mean "retry the
	// predicate"; callers always loop.
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)),
		uintptr(futexWaitOp), uintptr(val), 0, 0, 0)
}

func futexWake(addr *uint32, n int) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)),
		uintptr(futexWakeOp), uintptr(n), 0, 0, 0)
}

// mutexLock acquires the three-state futex mutex at word:
// 0 unlocked, 1 locked, 2 locked with waiters.
func mutexLock(word *uint32) {
	if atomic.CompareAndSwapUint32(word, 0, 1) {
		return
	}
	for {
		if atomic.LoadUint32(word) == 2 || atomic.CompareAndSwapUint32(word, 1, 2) {
			futexWait(word, 2)
		}
		if atomic.CompareAndSwapUint32(word, 0, 2) {
			return
		}
	}
}

func mutexUnlock(word *uint32) {
	if atomic.SwapUint32(word, 0) == 2 {
		futexWake(word, 1)
	}
}

// condWait atomically releases the mutex and sleeps until the sequence
// word changes, then reacquires the mutex. Spurious wakeups are allowed;
// callers re-check their predicate in a loop.
func condWait(seq, mutex *uint32) {
	old := atomic.LoadUint32(seq)
	mutexUnlock(mutex)
	futexWait(seq, old)
	mutexLock(mutex)
}

// condSignal wakes one waiter. Caller holds the mutex.
func condSignal(seq *uint32) {
	atomic.AddUint32(seq, 1)
	futexWake(seq, 1)
}

// condBroadcast wakes every waiter. Caller holds the mutex.
func condBroadcast(seq *uint32) {
	atomic.AddUint32(seq, 1)
	futexWake(seq, 1<<30)
}
