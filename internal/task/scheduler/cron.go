package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule yields the next occurrence strictly after a unix timestamp.
// It returns Never when there is none.
type CronSchedule interface {
	NextAfter(ts int64) int64
}

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type robfigSchedule struct {
	sched cron.Schedule
	loc   *time.Location
}

// ParseCron parses expr and evaluates it in loc (time.Local when nil).
func ParseCron(expr string, loc *time.Location) (CronSchedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty cron expression", ErrInvalidSchedule)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: cron %q: %v", ErrInvalidSchedule, expr, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return robfigSchedule{sched: sched, loc: loc}, nil
}

func (s robfigSchedule) NextAfter(ts int64) int64 {
	// robfig's Next truncates to the second and only returns later instants.
	t := s.sched.Next(time.Unix(ts, 0).In(s.loc))
	if t.IsZero() {
		return Never
	}
	return t.Unix()
}
