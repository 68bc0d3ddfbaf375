package scheduler

import (
	"fmt"
	"math"
	"strings"
	"time"

	"serialsched/internal/task/engine"
)

// Never is the due time of a Producer that has no further occurrences.
const Never int64 = math.MaxInt64

// Spec is the registration input for one job.
// Exactly one of Interval and Cron must be set. A zero Interval counts as
// unset; with no Cron either, the error matches both ErrConflictingSchedule
// and ErrInvalidSchedule.
type Spec struct {
	Name     string
	Interval time.Duration
	Cron     string
	Timeout  time.Duration
	Work     engine.Work
}

// Producer is one scheduled job plus its next due timestamp (unix seconds).
type Producer struct {
	name     string
	interval int64
	cronExpr string
	cron     CronSchedule
	timeout  time.Duration
	work     engine.Work

	next int64
}

// NewProducer validates spec and builds a Producer. Cron rules are evaluated in
// loc (time.Local when nil). The Producer has no due time until Start.
func NewProducer(spec Spec, loc *time.Location) (*Producer, error) {
	hasInterval := spec.Interval != 0
	hasCron := strings.TrimSpace(spec.Cron) != ""
	switch {
	case hasInterval && hasCron:
		return nil, fmt.Errorf("job %q: %w", spec.Name, ErrConflictingSchedule)
	case !hasInterval && !hasCron:
		return nil, fmt.Errorf("job %q: %w (%w: interval must be > 0)", spec.Name, ErrConflictingSchedule, ErrInvalidSchedule)
	}

	p := &Producer{
		name:    spec.Name,
		timeout: spec.Timeout,
		work:    spec.Work,
	}
	if hasCron {
		cs, err := ParseCron(spec.Cron, loc)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", spec.Name, err)
		}
		p.cron = cs
		p.cronExpr = strings.TrimSpace(spec.Cron)
	} else {
		secs, err := wholeSeconds(spec.Interval)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", spec.Name, err)
		}
		p.interval = secs
	}

	if spec.Timeout <= 0 {
		return nil, fmt.Errorf("job %q: %w: timeout must be > 0", spec.Name, ErrInvalidJob)
	}
	if spec.Work == nil {
		return nil, fmt.Errorf("job %q: %w: work is required", spec.Name, ErrInvalidJob)
	}
	return p, nil
}

func wholeSeconds(d time.Duration) (int64, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval must be > 0, got %s", ErrInvalidSchedule, d)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("%w: interval must be a whole number of seconds, got %s", ErrInvalidSchedule, d)
	}
	return int64(d / time.Second), nil
}

func (p *Producer) Name() string           { return p.name }
func (p *Producer) Timeout() time.Duration { return p.timeout }

// Next returns the current due timestamp.
func (p *Producer) Next() int64 { return p.next }

// Rule renders the timing rule for logs and listings.
func (p *Producer) Rule() string {
	if p.cron != nil {
		return "cron " + p.cronExpr
	}
	return fmt.Sprintf("every %ds", p.interval)
}

// Start sets the first due time relative to now.
//
// Interval jobs are aligned to the epoch grid of their interval minus one
// second, so an interval of 1 fires immediately and never waits. Jobs with
// equal intervals share a wall-clock grid no matter when they were registered.
func (p *Producer) Start(now int64) {
	if p.cron != nil {
		p.next = p.cron.NextAfter(now)
		return
	}
	p.next = now + (p.interval - now%p.interval - 1)
}

// Advance moves to the next occurrence after the previous due time (not after
// wall-clock now). Missed occurrences are neither skipped nor merged: a
// Producer that fell behind catches up one step per dispatch.
func (p *Producer) Advance() {
	if p.next == Never {
		return
	}
	if p.cron != nil {
		p.next = p.cron.NextAfter(p.next)
		return
	}
	p.next += p.interval
}
