package db

import (
	"time"
)

// maxReconnectDelay caps the cooldown between failed pool opens.
const maxReconnectDelay = 30 * time.Second

// ReconnectionState tracks failed attempts to open a project's pool. After a
// failure, further opens are refused until the cooldown has elapsed so that
// every keypress in the console does not dial a dead server again.
type ReconnectionState struct {
	Attempt     int       // consecutive failures
	LastAttempt time.Time // time of the last failure
	LastError   error
}

// NextDelay returns the cooldown after the current number of failures.
// Sequence: 1s, 2s, 4s, 8s, 16s, capped at 30s.
func (r *ReconnectionState) NextDelay() time.Duration {
	if r.Attempt == 0 {
		return 0
	}
	shift := min(r.Attempt-1, 5)
	return min(time.Duration(1<<uint(shift))*time.Second, maxReconnectDelay)
}

// Failed records a failed attempt at now.
func (r *ReconnectionState) Failed(now time.Time, err error) {
	r.Attempt++
	r.LastAttempt = now
	r.LastError = err
}

// Ready reports whether another attempt is allowed at now, and if not how
// long remains.
func (r *ReconnectionState) Ready(now time.Time) (bool, time.Duration) {
	if r.Attempt == 0 {
		return true, 0
	}
	wait := r.LastAttempt.Add(r.NextDelay()).Sub(now)
	if wait <= 0 {
		return true, 0
	}
	return false, wait
}

// Reset clears the state after a successful connection.
func (r *ReconnectionState) Reset() {
	r.Attempt = 0
	r.LastError = nil
}
