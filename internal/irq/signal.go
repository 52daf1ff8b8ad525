package irq

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// StartSignalRelay maps SIGUSR1 and SIGUSR2 onto the async trigger path:
// SIGUSR1 raises the motor-fault line, SIGUSR2 the sensor-ready line.
// The relay only calls Raise; handlers run on the next ProcessPending.
// Cleanup stops the relay and restores the default dispositions.
func (c *Controller) StartSignalRelay() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, unix.SIGUSR1, unix.SIGUSR2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for sig := range ch {
			switch sig {
			case unix.SIGUSR1:
				Raise(LineMotorFault)
			case unix.SIGUSR2:
				Raise(LineSensorReady)
			}
		}
	}()

	c.stopRelay = func() {
		signal.Reset(unix.SIGUSR1, unix.SIGUSR2)
		signal.Stop(ch)
		close(ch)
		<-done
	}
}
