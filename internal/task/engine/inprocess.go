package engine

import (
	"context"

	logx "serialsched/pkg/logx"
)

// InProcess runs jobs on a goroutine inside the scheduler process.
//
// Panics and errors are contained, but a job that ignores its context keeps
// running in the background after its timeout. Use Process when jobs must be
// killable.
type InProcess struct {
	Log logx.Logger
}

func NewInProcess(log logx.Logger) *InProcess {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &InProcess{Log: log}
}

func (r *InProcess) Execute(ctx context.Context, job Job) {
	log := r.Log.With(logx.RunID(job.RunID))
	log.Info("job.executing", logx.Job(job.Name))

	// The handler shares this goroutine's fate, never the dispatch loop's.
	if err := Contain(ctx, log, job, job.OnError); err != nil {
		log.Debug("job.error re-raised", logx.Job(job.Name), logx.Err(err))
	}
}
