package app

import (
	"context"
	"fmt"
	"os"

	"serialsched/internal/jobs"
	"serialsched/internal/task/engine"
	logx "serialsched/pkg/logx"
)

// RunChild executes one job inside an isolated child process and returns the
// process exit code. The config is read again from disk; the job is looked up
// by name.
func RunChild(ctx context.Context, cfgPath, job string) int {
	cfg, err := parseValid(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serialsched exec: %v\n", err)
		return 2
	}

	// The Telegram log sink stays with the parent; failures reach the chat
	// through the alert handler.
	lc := mapLogConfig(cfg)
	lc.Telegram.Enabled = false
	logs, log := logx.New(lc, nil)
	defer logs.Close()
	log = log.With(logx.String("comp", "child"))

	reg, err := buildRegistry(cfg, jobs.Output{})
	if err != nil {
		log.Error("job registry", logx.Err(err))
		return 2
	}
	spec, ok := reg.Lookup(job)
	if !ok {
		log.Error("job not found in config", logx.Job(job), logx.String("config", cfgPath))
		return 2
	}

	tg, err := newTelegram(cfg)
	if err != nil {
		log.Warn("telegram disabled", logx.Err(err))
		tg = nil
	}
	onError, err := errorHandler(cfg, cfgPath, tg, log)
	if err != nil {
		log.Error("error handler", logx.Err(err))
		return 2
	}

	return engine.ServeChild(ctx, log, engine.Job{
		Name:    spec.Name,
		RunID:   engine.ChildRunID(),
		Timeout: spec.Timeout,
		Work:    spec.Work,
		OnError: onError,
	})
}
