package tui

import (
	"time"
)

// ShutdownManager coordinates teardown when the dashboard exits: stop
// the stream consumer, then run cleanup, then let bubbletea restore the
// terminal.
type ShutdownManager struct {
	// DrainTimeout bounds how long to wait for the transport to wind
	// down. A wedged socket must not hold the terminal hostage.
	DrainTimeout time.Duration

	// StopTransport stops the stream client. It may block until the
	// client's reader has exited.
	StopTransport func()

	// Cleanup runs last, e.g. flushing the log file.
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops the transport, waiting at most DrainTimeout for it to
// drain, then runs cleanup.
func (sm *ShutdownManager) Shutdown() error {
	if sm.StopTransport != nil {
		done := make(chan struct{})
		go func() {
			sm.StopTransport()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(sm.DrainTimeout):
		}
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}

	return nil
}
