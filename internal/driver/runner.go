package driver

import (
	"context"
	"time"
)

// Run starts the ticker loop. One goroutine, no overlap, no retries.
// Returns when ctx is cancelled or shutdown is requested over the
// channel.
func (d *Driver) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.ch.IsShutdownRequested() {
				return
			}
			d.TickOnce()
		}
	}
}
