package jobs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"serialsched/internal/config"
	"serialsched/internal/task/scheduler"
	"serialsched/pkg/systemdmanager"
)

func TestCommandWork(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	w, err := CommandWork(config.JobConfig{Command: []string{"echo", "hello"}}, Output{Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		t.Fatalf("CommandWork() error = %v", err)
	}
	if err := w(context.Background()); err != nil {
		t.Fatalf("work error = %v", err)
	}
	if got := stdout.String(); got != "hello\n" {
		t.Fatalf("stdout = %q, want hello", got)
	}
}

func TestShellWorkExitError(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	w, err := CommandWork(config.JobConfig{Shell: "echo disk full >&2; exit 3"}, Output{Stdout: &bytes.Buffer{}, Stderr: &stderr})
	if err != nil {
		t.Fatalf("CommandWork() error = %v", err)
	}
	err = w(context.Background())
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("work error = %v, want *ExitError", err)
	}
	if ee.Code != 3 || ee.Stderr != "disk full" {
		t.Fatalf("exit error = %+v", ee)
	}
	if !strings.Contains(stderr.String(), "disk full") {
		t.Fatalf("stderr not forwarded: %q", stderr.String())
	}
}

func TestShellWorkDirAndEnv(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jc := config.JobConfig{
		Shell: `printf '%s' "$GREETING" > out.txt`,
		Dir:   dir,
		Env:   map[string]string{"GREETING": "hi"},
	}
	w, err := CommandWork(jc, Output{})
	if err != nil {
		t.Fatalf("CommandWork() error = %v", err)
	}
	if err := w(context.Background()); err != nil {
		t.Fatalf("work error = %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil || string(b) != "hi" {
		t.Fatalf("out.txt = %q, %v", b, err)
	}
}

func TestCommandWorkKilledOnTimeout(t *testing.T) {
	t.Parallel()
	w, err := CommandWork(config.JobConfig{Command: []string{"sleep", "10"}}, Output{})
	if err != nil {
		t.Fatalf("CommandWork() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = w(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("work error = %v, want deadline exceeded", err)
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("work took %v after timeout", took)
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()
	tb := newTailBuffer(8)
	_, _ = tb.Write([]byte("abcdef"))
	_, _ = tb.Write([]byte("ghij"))
	if got := tb.String(); got != "cdefghij" {
		t.Fatalf("tail = %q, want cdefghij", got)
	}
	_, _ = tb.Write([]byte("0123456789"))
	if got := tb.String(); got != "23456789" {
		t.Fatalf("tail = %q, want 23456789", got)
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()
	cfgs := []config.JobConfig{
		{Name: "backup", Interval: "3600", Timeout: "600", Command: []string{"true"}},
		{Name: "report", Cron: "0 3 * * *", Timeout: "2m", Shell: "true"},
		{Name: "nginx-reload", Interval: "24:00", Timeout: "30s", Unit: &config.UnitConfig{Name: "nginx", Action: "reload"}},
	}
	r, err := Build(cfgs, BuildOptions{Location: time.UTC})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	specs := r.Specs()
	for i, name := range []string{"backup", "report", "nginx-reload"} {
		if specs[i].Name != name {
			t.Fatalf("specs[%d] = %q, want %q", i, specs[i].Name, name)
		}
	}
	if specs[0].Interval != time.Hour || specs[0].Timeout != 10*time.Minute {
		t.Fatalf("backup spec = %+v", specs[0])
	}
	if specs[2].Interval != 24*time.Hour {
		t.Fatalf("unit interval = %v", specs[2].Interval)
	}
	if spec, ok := r.Lookup("report"); !ok || spec.Cron != "0 3 * * *" {
		t.Fatalf("Lookup(report) = %+v, %v", spec, ok)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) found a job")
	}

	s := scheduler.New(scheduler.Options{Location: time.UTC})
	if err := r.Register(s); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if n := len(s.Snapshot()); n != 3 {
		t.Fatalf("registered %d jobs, want 3", n)
	}
}

func TestBuildRegistryErrors(t *testing.T) {
	t.Parallel()
	ok := config.JobConfig{Name: "a", Interval: "60", Timeout: "10", Command: []string{"true"}}
	tests := []struct {
		name string
		jobs []config.JobConfig
		want error
	}{
		{name: "duplicate", jobs: []config.JobConfig{ok, ok}},
		{name: "bad interval", jobs: []config.JobConfig{{Name: "a", Interval: "1.5s", Timeout: "10", Shell: "true"}}, want: scheduler.ErrInvalidSchedule},
		{name: "bad cron", jobs: []config.JobConfig{{Name: "a", Cron: "every day", Timeout: "10", Shell: "true"}}, want: scheduler.ErrInvalidSchedule},
		{name: "both rules", jobs: []config.JobConfig{{Name: "a", Interval: "60", Cron: "@daily", Timeout: "10", Shell: "true"}}, want: scheduler.ErrConflictingSchedule},
		{name: "no rule", jobs: []config.JobConfig{{Name: "a", Timeout: "10", Shell: "true"}}, want: scheduler.ErrConflictingSchedule},
		{name: "zero timeout", jobs: []config.JobConfig{{Name: "a", Interval: "60", Timeout: "0", Shell: "true"}}},
		{name: "no name", jobs: []config.JobConfig{{Interval: "60", Timeout: "10", Shell: "true"}}, want: scheduler.ErrInvalidJob},
		{name: "bad unit action", jobs: []config.JobConfig{{Name: "a", Interval: "60", Timeout: "10", Unit: &config.UnitConfig{Name: "x", Action: "mask"}}}, want: systemdmanager.ErrUnknownAction},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tt.jobs, BuildOptions{Location: time.UTC})
			if err == nil {
				t.Fatal("Build() error = nil")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type fakeUnits struct {
	unit   string
	action systemdmanager.Action
	err    error
	closed bool
}

func (f *fakeUnits) Do(_ context.Context, unit string, action systemdmanager.Action) error {
	f.unit, f.action = unit, action
	return f.err
}

func TestUnitWork(t *testing.T) {
	t.Parallel()
	f := &fakeUnits{}
	connect := func(context.Context) (UnitManager, func() error, error) {
		return f, func() error { f.closed = true; return nil }, nil
	}
	w, err := UnitWork(config.UnitConfig{Name: "nginx"}, connect)
	if err != nil {
		t.Fatalf("UnitWork() error = %v", err)
	}
	if err := w(context.Background()); err != nil {
		t.Fatalf("work error = %v", err)
	}
	if f.unit != "nginx.service" || f.action != systemdmanager.ActionRestart || !f.closed {
		t.Fatalf("unit call = %+v", f)
	}

	failed := &systemdmanager.JobResultError{Unit: "nginx.service", Action: systemdmanager.ActionRestart, Result: "failed"}
	f.err = failed
	if err := w(context.Background()); !errors.Is(err, failed) {
		t.Fatalf("work error = %v, want job result error", err)
	}

	down := errors.New("no bus")
	w, _ = UnitWork(config.UnitConfig{Name: "nginx"}, func(context.Context) (UnitManager, func() error, error) {
		return nil, nil, down
	})
	if err := w(context.Background()); !errors.Is(err, down) {
		t.Fatalf("work error = %v, want connect error", err)
	}
}
