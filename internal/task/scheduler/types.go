package scheduler

import (
	"time"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/engine"
	logx "serialsched/pkg/logx"
)

// Event types published on the bus by the dispatch loop.
const (
	EventWaiting   = "job.waiting"
	EventExecuting = "job.executing"
	EventFinished  = "job.finished"
)

// JobEvent is the Data of every scheduler bus event.
type JobEvent struct {
	Job   string    `json:"job"`
	RunID string    `json:"run_id,omitempty"`
	Due   time.Time `json:"due"`
	// Wait is set on job.waiting.
	Wait time.Duration `json:"wait,omitempty"`
	// Started and Duration are set on job.executing / job.finished.
	Started  time.Time     `json:"started,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	// Next is the due time after Advance (job.executing / job.finished).
	Next time.Time `json:"next,omitempty"`
}

// Options configures a Scheduler. Zero values get sensible defaults.
type Options struct {
	Log logx.Logger
	// ErrorHandler receives contained job failures inside the isolation
	// boundary. Defaults to engine.Reraise.
	ErrorHandler engine.ErrorHandler
	// Runner defaults to engine.NewInProcess.
	Runner engine.Runner
	// Location is used to evaluate cron rules. Defaults to time.Local.
	Location *time.Location
	Clock    Clock
	Bus      eventbus.Bus
}

// ProducerInfo is a read-only view of a registered job.
type ProducerInfo struct {
	Name    string        `json:"name"`
	Rule    string        `json:"rule"`
	Timeout time.Duration `json:"timeout"`
	// Next is zero before Run starts and for jobs with no further occurrence.
	Next time.Time `json:"next,omitempty"`
}
