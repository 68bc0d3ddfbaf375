package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  timezone: UTC
  isolation: process
  kill_grace: 2s
storage:
  driver: sqlite
  path: ./runs.db
admin:
  enabled: true
jobs:
  - name: backup
    interval: 3600
    timeout: 10m
    command: ["/usr/local/bin/backup", "--full"]
    env:
      BACKUP_TARGET: s3
  - name: report
    cron: "0 3 * * *"
    timeout: "120"
    shell: "make report"
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("serialsched.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if len(cfg.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(cfg.Jobs))
	}
	backup := cfg.Jobs[0]
	if backup.Interval != "3600" || backup.Timeout != "10m" {
		t.Fatalf("backup interval/timeout = %q/%q", backup.Interval, backup.Timeout)
	}
	if !reflect.DeepEqual(backup.Command, []string{"/usr/local/bin/backup", "--full"}) {
		t.Fatalf("backup command = %v", backup.Command)
	}
	if backup.Env["BACKUP_TARGET"] != "s3" {
		t.Fatalf("backup env = %v", backup.Env)
	}
	if cfg.Jobs[1].Cron != "0 3 * * *" || cfg.Jobs[1].Shell != "make report" {
		t.Fatalf("report job = %+v", cfg.Jobs[1])
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := cfg.Admin.Address(); got != DefaultAdminAddr {
		t.Fatalf("admin addr = %q, want %q", got, DefaultAdminAddr)
	}
	if got := cfg.Scheduler.IsolationMode(); got != IsolationProcess {
		t.Fatalf("isolation = %q", got)
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("Location() = %v, %v", loc, err)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
	}{
		{name: "unknown field", file: "c.json", data: `{"jobs":[],"workers":4}`},
		{name: "unknown job field", file: "c.yaml", data: "jobs:\n  - name: a\n    retries: 3\n"},
		{name: "trailing data", file: "c.json", data: `{"jobs":[]} {"jobs":[]}`},
		{name: "fractional interval", file: "c.yaml", data: "jobs:\n  - name: a\n    interval: 1.5\n"},
		{name: "bad yaml", file: "c.yml", data: "jobs: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.file, []byte(tt.data)); err == nil {
				t.Fatal("Decode() error = nil, want error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := func() *Config {
		return &Config{Jobs: []JobConfig{{Name: "a", Interval: "60", Timeout: "10", Command: []string{"true"}}}}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "no jobs", mutate: func(c *Config) { c.Jobs = nil }, wantErr: "at least one job"},
		{name: "missing name", mutate: func(c *Config) { c.Jobs[0].Name = " " }, wantErr: "jobs[0].name"},
		{name: "duplicate name", mutate: func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) }, wantErr: "duplicate job name"},
		{name: "command and shell", mutate: func(c *Config) { c.Jobs[0].Shell = "true" }, wantErr: "exactly one of command, shell and unit"},
		{name: "no command", mutate: func(c *Config) { c.Jobs[0].Command = nil }, wantErr: "exactly one of command, shell and unit"},
		{name: "unit job", mutate: func(c *Config) {
			c.Jobs[0].Command = nil
			c.Jobs[0].Unit = &UnitConfig{Name: "nginx", Action: "reload"}
		}},
		{name: "unit bad action", mutate: func(c *Config) {
			c.Jobs[0].Command = nil
			c.Jobs[0].Unit = &UnitConfig{Name: "nginx", Action: "mask"}
		}, wantErr: "unit.action"},
		{name: "no timeout", mutate: func(c *Config) { c.Jobs[0].Timeout = "" }, wantErr: "timeout is required"},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: "scheduler.timezone"},
		{name: "bad isolation", mutate: func(c *Config) { c.Scheduler.Isolation = "thread" }, wantErr: "scheduler.isolation"},
		{name: "bad kill grace", mutate: func(c *Config) { c.Scheduler.KillGrace = "soon" }, wantErr: "scheduler.kill_grace"},
		{name: "alert without telegram", mutate: func(c *Config) { c.Alert.Enabled = true }, wantErr: "telegram.token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Telegram: TelegramConfig{Token: "secret", ChatID: 1},
		Jobs: []JobConfig{
			{Name: "a", Interval: "60"},
			{Name: "b", Interval: "60"},
			{Name: "c", Cron: "@daily"},
		},
	}
	newCfg := &Config{
		Telegram:  TelegramConfig{Token: "rotated", ChatID: 1},
		Scheduler: SchedulerConfig{Timezone: "UTC"},
		Jobs: []JobConfig{
			{Name: "a", Interval: "60"},
			{Name: "c", Cron: "@hourly"},
			{Name: "d", Interval: "30"},
		},
	}

	changed, attrs, jobs := SummarizeConfigChange(oldCfg, newCfg)

	if want := []string{"jobs", "scheduler", "telegram"}; !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatal("attrs empty")
	}
	want := JobChanges{Added: []string{"d"}, Removed: []string{"b"}, Changed: []string{"c"}}
	if !reflect.DeepEqual(jobs, want) {
		t.Fatalf("jobs = %+v, want %+v", jobs, want)
	}

	if changed, _, jobs := SummarizeConfigChange(oldCfg, oldCfg); len(changed) != 0 || !jobs.Empty() {
		t.Fatalf("identical configs reported changes: %v %+v", changed, jobs)
	}
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "serialsched.yaml")
	writeConfig(t, path, sampleYAML)

	m := NewConfigManager(path)
	reject := errors.New("job backup: bad schedule")
	m.SetValidator(func(context.Context, *Config) error { return reject })
	if _, err := m.Load(context.Background()); !errors.Is(err, reject) {
		t.Fatalf("Load() error = %v, want validator error", err)
	}
	if m.Get() != nil {
		t.Fatal("rejected config was committed")
	}

	m.SetValidator(nil)
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get() does not return the loaded config")
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "serialsched.yaml")
	writeConfig(t, path, sampleYAML)

	m := NewConfigManager(path)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(200 * time.Millisecond)

	// Invalid content is rejected and never published.
	writeConfig(t, path, "jobs: []\n")
	select {
	case cfg := <-updates:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(time.Second):
	}

	writeConfig(t, path, strings.Replace(sampleYAML, "level: debug", "level: warn", 1))
	select {
	case cfg := <-updates:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("published level = %q, want warn", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published after change")
	}
	if m.Get().Logging.Level != "warn" {
		t.Fatal("change not committed")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: " 5s ", want: 5 * time.Second},
		{raw: "90", want: 90 * time.Second},
		{raw: "1m30s", want: 90 * time.Second},
		{raw: "-1s", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("scheduler.kill_grace", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if err != nil {
			if !strings.Contains(err.Error(), "scheduler.kill_grace") {
				t.Fatalf("error %q does not name the field", err)
			}
			continue
		}
		if got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}

	if d, _ := ParseDurationOrDefault("x", "0", time.Minute); d != time.Minute {
		t.Fatalf("ParseDurationOrDefault(0) = %s, want 1m", d)
	}
}
