package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"serialsched/internal/alert"
	"serialsched/internal/config"
	"serialsched/internal/jobs"
	"serialsched/internal/task/engine"
	logx "serialsched/pkg/logx"
)

var nopLog = logx.Nop()

// LoadConfig reads, validates and builds the job registry from path without
// starting anything.
func LoadConfig(ctx context.Context, path string) (*config.Config, *jobs.Registry, error) {
	cfgm := config.NewConfigManager(path)
	var reg *jobs.Registry
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		r, err := buildRegistry(cfg, jobs.Output{})
		reg = r
		return err
	})
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}

// validateRuntime checks what config.Validate cannot: every job must build
// and the storage section must map to a driver.
func validateRuntime(_ context.Context, cfg *config.Config) error {
	if _, err := buildRegistry(cfg, jobs.Output{}); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

func buildRegistry(cfg *config.Config, out jobs.Output) (*jobs.Registry, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	return jobs.Build(cfg.Jobs, jobs.BuildOptions{Location: loc, Output: out})
}

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

// newTelegram returns nil when no chat is configured.
func newTelegram(cfg *config.Config) (*alert.Telegram, error) {
	tc := cfg.Telegram
	if tc.Token == "" || tc.ChatID == 0 {
		return nil, nil
	}
	return alert.NewTelegram(alert.Config{Token: tc.Token, ChatID: tc.ChatID, ThreadID: tc.ThreadID})
}

// errorHandler builds the handler used inside the isolation boundary. Without
// alerting the failure is re-raised.
func errorHandler(cfg *config.Config, cfgPath string, tg *alert.Telegram, log logx.Logger) (engine.ErrorHandler, error) {
	if !cfg.Alert.Enabled || tg == nil {
		return engine.Reraise, nil
	}
	minInterval, err := config.ParseDurationOrDefault("alert.min_interval", cfg.Alert.MinInterval, config.DefaultAlertMinInterval)
	if err != nil {
		return nil, err
	}
	th, err := alert.NewThrottle(alertStateDir(cfg, cfgPath), minInterval)
	if err != nil {
		return nil, err
	}
	return alert.Handler(tg, th, log.With(logx.String("comp", "alert"))), nil
}

// alertStateDir resolves alert.state_dir; relative paths are taken from the
// config file's directory.
func alertStateDir(cfg *config.Config, cfgPath string) string {
	base := filepath.Dir(cfgPath)
	if dir := strings.TrimSpace(cfg.Alert.StateDir); dir != "" {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(base, dir)
	}
	// systemd's StateDirectory= may list several paths.
	if sd, _, _ := strings.Cut(os.Getenv("STATE_DIRECTORY"), ":"); sd != "" {
		return filepath.Join(sd, "alerts")
	}
	return filepath.Join(base, ".serialsched-state", "alerts")
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("config path: %w", err)
	}
	return abs, nil
}

func killGrace(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("scheduler.kill_grace", cfg.Scheduler.KillGrace, engine.DefaultKillGrace)
}

func parseValid(path string) (*config.Config, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
