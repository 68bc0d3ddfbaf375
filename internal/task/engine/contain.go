package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "serialsched/pkg/logx"
)

// Contain runs job.Work with the job timeout and keeps every ordinary failure
// on this side of the boundary: returned errors, panics and the timeout are
// logged as job.error and passed to handler.
//
// The return value is non-nil only when the handler itself failed, which is how
// the default Reraise handler surfaces (as a child exit status).
//
// On timeout the work's context is cancelled and Contain gives it up to
// settleTimeout to return, which is enough for command work to have its
// process group killed and reaped. Work that ignores ctx is then abandoned. In
// a child process the exit reclaims it; in-process it lingers until the work
// notices ctx.
func Contain(ctx context.Context, log logx.Logger, job Job, handler ErrorHandler) error {
	if handler == nil {
		handler = Reraise
	}

	err := runWork(ctx, log, job)
	if err == nil {
		return nil
	}

	jerr := &JobError{Job: job.Name, Err: err}
	fields := []logx.Field{logx.Job(job.Name), logx.Err(err)}
	var pe *PanicError
	if errors.As(err, &pe) {
		fields = append(fields, logx.Stack(pe.Stack))
	}
	log.Error("job.error", fields...)
	return callHandler(handler, jerr)
}

// settleTimeout bounds the wait for timed-out work to unwind.
const settleTimeout = 500 * time.Millisecond

func runWork(ctx context.Context, log logx.Logger, job Job) error {
	if job.Work == nil {
		return ErrNoWork
	}

	runCtx := ctx
	cancel := func() {}
	if job.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
	}
	defer cancel()

	// Buffered so an abandoned goroutine can still finish and be collected.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: string(debug.Stack())}
			}
		}()
		done <- job.Work(runCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return timeoutError(job.Timeout)
		}
		return err
	case <-runCtx.Done():
		if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return runCtx.Err()
		}
		log.Warn("job.timeout", logx.Job(job.Name), logx.Duration("timeout", job.Timeout))
		settle := time.NewTimer(settleTimeout)
		defer settle.Stop()
		select {
		case <-done:
		case <-settle.C:
			log.Warn("job.abandoned", logx.Job(job.Name))
		}
		return timeoutError(job.Timeout)
	}
}

func callHandler(handler ErrorHandler, err error) (out error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				out = e
				return
			}
			out = fmt.Errorf("error handler panic: %v", r)
		}
	}()
	handler(err)
	return nil
}
