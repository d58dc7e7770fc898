package update

// Outcome is the terminal result of one update attempt.
type Outcome struct {
	OK     bool
	Reason string
}

// Aborted builds a failed outcome with a reported reason.
func Aborted(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Success is the single succeeding outcome.
var Success = Outcome{OK: true}

// Session is the ephemeral state of one OTA request. It is created at
// request entry and discarded when the handler returns; on success the
// process ends in a reboot instead.
type Session struct {
	ID             string
	SourceURL      string
	ExpectedLength int64
	BytesWritten   int64
	Outcome        Outcome
}
