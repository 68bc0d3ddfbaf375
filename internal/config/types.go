package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	Storage  *StorageConfig `json:"storage,omitempty"`
	Admin    AdminConfig    `json:"admin,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Alert    AlertConfig    `json:"alert,omitempty"`

	Jobs []JobConfig `json:"jobs"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log lines at or above MinLevel to the telegram chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the dispatch loop.
//
// Defaults (when fields are omitted/zero):
//   - timezone: local time
//   - isolation: "process"
//   - kill_grace: "5s"
//   - reload_on_change: false
type SchedulerConfig struct {
	// Timezone is an IANA name used to evaluate cron rules.
	Timezone string `json:"timezone,omitempty"`
	// Isolation is "process" (re-exec per run) or "inprocess".
	Isolation string `json:"isolation,omitempty"`
	// KillGrace is a Go duration string added to a job's timeout before the
	// child is killed.
	KillGrace string `json:"kill_grace,omitempty"`
	// ReloadOnChange restarts the scheduler when the config file changes.
	ReloadOnChange bool `json:"reload_on_change,omitempty"`
}

// StorageConfig controls the optional run history.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./serialsched.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// AdminConfig controls the local HTTP endpoint (/healthz, /metrics, /jobs, /history).
//
// Prefer binding to localhost; the endpoint has no authentication.
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9470"
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// AlertConfig sends a telegram message for every failed job run.
type AlertConfig struct {
	Enabled bool `json:"enabled"`
	// MinInterval throttles alerts per job (Go duration string, default "1m").
	MinInterval string `json:"min_interval,omitempty"`
	// StateDir holds the throttle markers. It must not be writable by other
	// users. Defaults to $STATE_DIRECTORY/alerts under systemd, otherwise
	// .serialsched-state/alerts next to the config file.
	StateDir string `json:"state_dir,omitempty"`
}

// JobConfig describes one scheduled job. Exactly one of Interval and Cron
// must be set, and exactly one of Command, Shell and Unit.
type JobConfig struct {
	Name string `json:"name"`

	// Interval accepts seconds ("3600" or 3600), a Go duration ("1h") or "HH:MM".
	Interval Scalar `json:"interval,omitempty"`
	Cron     string `json:"cron,omitempty"`
	// Timeout uses the same formats as Interval.
	Timeout Scalar `json:"timeout"`

	Command []string          `json:"command,omitempty"`
	Shell   string            `json:"shell,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	Unit *UnitConfig `json:"unit,omitempty"`
}

// UnitConfig runs a systemd unit operation over D-Bus, e.g. a nightly
// restart of a service.
type UnitConfig struct {
	Name string `json:"name"`
	// Action is start, stop, restart or reload (default restart).
	Action string `json:"action,omitempty"`
}

// Scalar is a string that may also be written as a bare number in the
// config file.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("expected whole number, got %s", n)
	}
	*s = Scalar(n.String())
	return nil
}

func (s Scalar) String() string { return string(s) }
