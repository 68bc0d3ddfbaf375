package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout marks a job whose work did not finish within its timeout.
	ErrTimeout = errors.New("job timed out")

	ErrNoWork = errors.New("job has no work")
)

// JobError wraps any failure contained at the isolation boundary.
//
// Handlers can use errors.Is(err, ErrTimeout) or errors.As with *PanicError to
// tell the failure kinds apart.
type JobError struct {
	Job string
	Err error
}

func (e *JobError) Error() string { return fmt.Sprintf("job %q: %v", e.Job, e.Err) }
func (e *JobError) Unwrap() error { return e.Err }

// PanicError is a recovered panic from job work.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func timeoutError(d time.Duration) error {
	return fmt.Errorf("%w after %s", ErrTimeout, d)
}
