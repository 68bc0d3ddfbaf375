package storage

import (
	"context"
	"time"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/scheduler"
	logx "serialsched/pkg/logx"
)

const appendTimeout = 2 * time.Second

// Record appends a RunRecord for every job.finished event on bus until ctx is
// done. It runs off the dispatch loop; a slow store drops records rather than
// delaying jobs.
func Record(ctx context.Context, bus eventbus.Bus, st Store, log logx.Logger) {
	if bus == nil || st == nil {
		return
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	events, unsubscribe := bus.Subscribe(64, scheduler.EventFinished)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev, ok := e.Data.(scheduler.JobEvent)
			if !ok {
				continue
			}
			rec := RunRecord{ID: ev.RunID, Job: ev.Job, Due: ev.Due, Started: ev.Started, Duration: ev.Duration}
			actx, cancel := context.WithTimeout(ctx, appendTimeout)
			err := st.AppendRun(actx, rec)
			cancel()
			if err != nil {
				log.Warn("history append failed", logx.Job(ev.Job), logx.Err(err))
			}
		}
	}
}
