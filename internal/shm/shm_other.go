//go:build !linux

package shm

// Hosts without POSIX-style shared memory substitute the in-process
// backend; the contract is identical but the channel does not cross
// process boundaries.

// Create allocates a channel region under name.
func Create(name string) (Channel, error) {
	return CreateInProcess(name)
}

// OpenExisting attaches to an already-created region.
func OpenExisting(name string) (Channel, error) {
	return OpenInProcess(name)
}
