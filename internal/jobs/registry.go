package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"serialsched/internal/config"
	"serialsched/internal/task/engine"
	"serialsched/internal/task/scheduler"
)

// BuildOptions controls how configured jobs become work.
type BuildOptions struct {
	Location *time.Location
	Output   Output
	// ConnectUnits overrides the systemd connection for unit jobs.
	ConnectUnits func(context.Context) (UnitManager, func() error, error)
}

// Registry is the ordered set of configured jobs.
type Registry struct {
	specs  []scheduler.Spec
	byName map[string]int
}

// Build converts job configs into validated specs, keeping config order.
// Every schedule and timeout is checked here, so a Registry that builds
// can always be added to a scheduler.
func Build(cfgs []config.JobConfig, opt BuildOptions) (*Registry, error) {
	loc := opt.Location
	if loc == nil {
		loc = time.Local
	}
	r := &Registry{byName: make(map[string]int, len(cfgs))}
	for _, jc := range cfgs {
		spec, err := buildSpec(jc, opt)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byName[spec.Name]; dup {
			return nil, fmt.Errorf("job %q: duplicate name", spec.Name)
		}
		if _, err := scheduler.NewProducer(spec, loc); err != nil {
			return nil, err
		}
		r.byName[spec.Name] = len(r.specs)
		r.specs = append(r.specs, spec)
	}
	return r, nil
}

func buildSpec(jc config.JobConfig, opt BuildOptions) (scheduler.Spec, error) {
	name := strings.TrimSpace(jc.Name)
	spec := scheduler.Spec{Name: name, Cron: strings.TrimSpace(jc.Cron)}
	if name == "" {
		return spec, fmt.Errorf("job name is required: %w", scheduler.ErrInvalidJob)
	}

	if raw := strings.TrimSpace(jc.Interval.String()); raw != "" {
		d, err := scheduler.ParseInterval(raw)
		if err != nil {
			return spec, fmt.Errorf("job %q: interval: %w", name, err)
		}
		spec.Interval = d
	}
	timeout, err := scheduler.ParseInterval(jc.Timeout.String())
	if err != nil {
		return spec, fmt.Errorf("job %q: timeout: %w", name, err)
	}
	spec.Timeout = timeout

	var work engine.Work
	if jc.Unit != nil {
		work, err = UnitWork(*jc.Unit, opt.ConnectUnits)
	} else {
		work, err = CommandWork(jc, opt.Output)
	}
	if err != nil {
		return spec, fmt.Errorf("job %q: %w", name, err)
	}
	spec.Work = work
	return spec, nil
}

// Specs returns the specs in config order.
func (r *Registry) Specs() []scheduler.Spec {
	return append([]scheduler.Spec(nil), r.specs...)
}

func (r *Registry) Lookup(name string) (scheduler.Spec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return scheduler.Spec{}, false
	}
	return r.specs[i], true
}

func (r *Registry) Len() int { return len(r.specs) }

// Register adds every spec to s in config order.
func (r *Registry) Register(s *scheduler.Scheduler) error {
	for _, spec := range r.specs {
		if err := s.Add(spec); err != nil {
			return err
		}
	}
	return nil
}
