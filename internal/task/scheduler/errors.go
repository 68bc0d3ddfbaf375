package scheduler

import "errors"

var (
	// ErrInvalidSchedule is returned when an interval is not a positive whole
	// number of seconds or a cron expression does not parse.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrConflictingSchedule is returned when both or neither of interval and
	// cron are supplied.
	ErrConflictingSchedule = errors.New("exactly one of interval or cron is required")
	// ErrInvalidJob covers the remaining construction checks (timeout, work).
	ErrInvalidJob = errors.New("invalid job")

	ErrNoProducers = errors.New("scheduler has no jobs")
	ErrRunning     = errors.New("scheduler already started")
)
