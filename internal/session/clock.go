package session

import "time"

// Timer is a cancellable delayed callback handle.
type Timer interface {
	// Stop cancels the pending callback. It reports false when the
	// callback already fired or was stopped before.
	Stop() bool
}

// Clock abstracts wall-clock reads and delayed callbacks so the countdown
// and the debounce window can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
