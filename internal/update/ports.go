package update

import (
	"time"
)

// SlotStore is the firmware write-window contract the pipeline drives.
type SlotStore interface {
	// Begin reserves the spare slot for an image of the given size.
	Begin(size int64) error

	// Write streams image bytes into the open window.
	Write(p []byte) (int, error)

	// Finalize commits the written image (digest + metadata).
	Finalize() error

	// IsFinished re-checks that the committed image is complete.
	IsFinished() bool

	// Abort discards a partial write, leaving the active slot untouched.
	Abort()

	// Activate makes the finalized spare slot the active image.
	Activate() error
}

// Restarter restarts the device after a successful update.
type Restarter interface {
	Restart() error
}

// AuditSink records update attempt outcomes.
type AuditSink interface {
	LogAction(action, target string, params map[string]interface{}, outcome string, latency time.Duration)
}
