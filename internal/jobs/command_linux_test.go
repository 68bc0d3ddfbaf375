//go:build linux

package jobs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"serialsched/internal/config"
	"serialsched/internal/task/engine"
	logx "serialsched/pkg/logx"
)

func liveSleeps(arg string) int {
	entries, _ := os.ReadDir("/proc")
	n := 0
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err == nil && string(b) == "sleep\x00"+arg+"\x00" {
			n++
		}
	}
	return n
}

func TestShellWorkTimeoutKillsWholeTree(t *testing.T) {
	t.Parallel()
	w, err := CommandWork(config.JobConfig{Shell: "sleep 0.01; sleep 3151 & wait"}, Output{Stdout: io.Discard, Stderr: io.Discard})
	if err != nil {
		t.Fatalf("CommandWork() error = %v", err)
	}
	var handled atomic.Int32
	job := engine.Job{Name: "backup", Timeout: 300 * time.Millisecond, Work: w}

	if err := engine.Contain(context.Background(), logx.Nop(), job, func(error) { handled.Add(1) }); err != nil {
		t.Fatalf("Contain() error = %v", err)
	}
	if got := handled.Load(); got != 1 {
		t.Fatalf("handler calls = %d, want 1", got)
	}

	deadline := time.Now().Add(time.Second)
	for liveSleeps("3151") > 0 {
		if time.Now().After(deadline) {
			t.Fatal("sleep 3151 outlived the job timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
