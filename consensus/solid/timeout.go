package solid

import (
	"sync"
	"time"
)

// timeoutDriver is the Timeout Driver (spec §4): a one-shot timer that
// fires when a round exceeds its deadline. It is re-armed on every round
// entry, and advancing the round implicitly cancels whatever was pending
// (spec §5 "Cancellation / timeouts"), mirroring the teacher's per-step
// `*timeout` wrapper around a `*time.Timer` (other_examples core.go:
// `newTimeout(propose, logger)` / `scheduleTimeout(...)`).
type timeoutDriver struct {
	mu    sync.Mutex
	timer *time.Timer
	round Round
}

// fire is delivered on the channel when a scheduled timeout's deadline
// passes without being canceled first.
type fire struct {
	round Round
}

// schedule arms a one-shot timer for round that sends on ch after d,
// canceling any previously scheduled timer first.
func (t *timeoutDriver) schedule(d time.Duration, round Round, ch chan<- fire) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.round = round
	t.timer = time.AfterFunc(d, func() {
		select {
		case ch <- fire{round: round}:
		default:
		}
	})
}

// cancel stops the current timer, if any. Called whenever the round
// advances for a reason other than this exact timeout firing.
func (t *timeoutDriver) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
