package scheduler

import "time"

// Clock is the scheduler's view of time. Tests swap in a fake to drive the
// dispatch loop without real waiting.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until cancel is closed, whichever comes first.
	Sleep(d time.Duration, cancel <-chan struct{})
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(d time.Duration, cancel <-chan struct{}) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-cancel:
	}
}
