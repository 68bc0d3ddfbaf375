package engine

import (
	"context"
	"time"
)

// Work is the side-effecting body of a scheduled job.
//
// ctx carries the job timeout. Work that ignores ctx is still bounded: the
// isolation layer stops waiting for it shortly after the timeout has elapsed.
type Work func(ctx context.Context) error

// ErrorHandler receives every contained job failure (including timeouts).
//
// It runs inside the isolation boundary: with the Process runner that is the
// child process, so it cannot mutate scheduler state. Anything it wants to
// communicate must leave through logs or external calls.
type ErrorHandler func(err error)

// Reraise is the default ErrorHandler. It re-raises the error inside the
// isolated context, where it is caught by the containment layer and turns into
// a non-zero child exit status that nobody inspects.
func Reraise(err error) { panic(err) }

// Job is one execution request handed to a Runner.
type Job struct {
	Name    string
	RunID   string
	Timeout time.Duration
	Work    Work

	// OnError is used by in-process runners. Process runners ignore it: the
	// child builds its own handler from the same wiring as the parent.
	OnError ErrorHandler
}

// Runner executes a single job under isolation and blocks until it is over,
// whether it succeeded, failed or timed out.
type Runner interface {
	Execute(ctx context.Context, job Job)
}
