package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	IsolationProcess   = "process"
	IsolationInProcess = "inprocess"

	DefaultAdminAddr        = "127.0.0.1:9470"
	DefaultAlertMinInterval = time.Minute
)

// Validate checks the structure of cfg. Schedule expressions are parsed later,
// when jobs are built.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if _, err := cfg.Scheduler.Location(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Scheduler.Isolation)) {
	case "", IsolationProcess, IsolationInProcess:
	default:
		errs = append(errs, fmt.Errorf("scheduler.isolation: unknown mode %q", cfg.Scheduler.Isolation))
	}
	if _, err := ParseDurationField("scheduler.kill_grace", cfg.Scheduler.KillGrace); err != nil {
		errs = append(errs, err)
	}

	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Alert.Enabled || cfg.Logging.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" || cfg.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("telegram.token and telegram.chat_id are required when alerts or telegram logging are enabled"))
		}
	}
	if _, err := ParseDurationField("alert.min_interval", cfg.Alert.MinInterval); err != nil {
		errs = append(errs, err)
	}

	if len(cfg.Jobs) == 0 {
		errs = append(errs, errors.New("jobs: at least one job is required"))
	}
	seen := make(map[string]struct{}, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		name := strings.TrimSpace(j.Name)
		path := fmt.Sprintf("jobs[%d]", i)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", path))
		} else {
			path = fmt.Sprintf("jobs[%s]", name)
			if _, dup := seen[name]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate job name", path))
			}
			seen[name] = struct{}{}
		}
		kinds := 0
		for _, set := range []bool{len(j.Command) > 0, strings.TrimSpace(j.Shell) != "", j.Unit != nil} {
			if set {
				kinds++
			}
		}
		if kinds != 1 {
			errs = append(errs, fmt.Errorf("%s: exactly one of command, shell and unit is required", path))
		}
		if j.Unit != nil {
			if strings.TrimSpace(j.Unit.Name) == "" {
				errs = append(errs, fmt.Errorf("%s.unit.name is required", path))
			}
			switch strings.ToLower(strings.TrimSpace(j.Unit.Action)) {
			case "", "start", "stop", "restart", "reload":
			default:
				errs = append(errs, fmt.Errorf("%s.unit.action: unknown action %q", path, j.Unit.Action))
			}
		}
		if strings.TrimSpace(j.Timeout.String()) == "" {
			errs = append(errs, fmt.Errorf("%s.timeout is required", path))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; empty means local time.
func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// IsolationMode returns the normalized isolation mode (default process).
func (s SchedulerConfig) IsolationMode() string {
	m := strings.ToLower(strings.TrimSpace(s.Isolation))
	if m == "" {
		return IsolationProcess
	}
	return m
}

func (a AdminConfig) Address() string {
	if addr := strings.TrimSpace(a.Addr); addr != "" {
		return addr
	}
	return DefaultAdminAddr
}
