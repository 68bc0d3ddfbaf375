package app

import (
	"serialsched/internal/config"
	"serialsched/internal/eventbus"
	"serialsched/internal/jobs"
	"serialsched/internal/task/engine"
	"serialsched/internal/task/scheduler"
	logx "serialsched/pkg/logx"
)

// childArgs is the argv of an isolated run; the CLI's hidden exec command
// accepts exactly these flags.
func childArgs(cfgPath string) func(job string) []string {
	return func(job string) []string {
		return []string{"exec", "--config", cfgPath, "--job", job}
	}
}

func newRunner(cfg *config.Config, cfgPath string, log logx.Logger) (engine.Runner, error) {
	if cfg.Scheduler.IsolationMode() == config.IsolationInProcess {
		return engine.NewInProcess(log), nil
	}
	grace, err := killGrace(cfg)
	if err != nil {
		return nil, err
	}
	return &engine.Process{
		Args:      childArgs(cfgPath),
		KillGrace: grace,
		Log:       log,
	}, nil
}

// newScheduler builds a scheduler with every configured job registered.
func newScheduler(cfg *config.Config, cfgPath string, onError engine.ErrorHandler, bus eventbus.Bus, log logx.Logger) (*scheduler.Scheduler, error) {
	reg, err := buildRegistry(cfg, jobs.Output{})
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	runner, err := newRunner(cfg, cfgPath, log.With(logx.String("comp", "engine")))
	if err != nil {
		return nil, err
	}
	s := scheduler.New(scheduler.Options{
		Log:          log.With(logx.String("comp", "scheduler")),
		ErrorHandler: onError,
		Runner:       runner,
		Location:     loc,
		Bus:          bus,
	})
	if err := reg.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}
