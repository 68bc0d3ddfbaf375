//go:build linux

package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"
)

// sleepers returns the pids of live "sleep <arg>" processes.
func sleepers(t *testing.T, arg string) []int {
	t.Helper()
	entries, err := os.ReadDir("/proc")
	if err != nil {
		t.Fatalf("read /proc: %v", err)
	}
	want := "sleep\x00" + arg + "\x00"
	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		b, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue
		}
		if string(b) == want {
			pids = append(pids, pid)
		}
	}
	return pids
}

// waitNoSleepers fails unless every "sleep <arg>" is gone within a second.
// Killed processes are reaped asynchronously by init.
func waitNoSleepers(t *testing.T, arg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		pids := sleepers(t, arg)
		if len(pids) == 0 {
			return
		}
		if time.Now().After(deadline) {
			for _, pid := range pids {
				_ = syscall.Kill(pid, syscall.SIGKILL)
			}
			t.Fatalf("sleep %s still running: pids %v", arg, pids)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestGroupCancelKillsDescendants(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "sleep 3141 & wait")
	start := time.Now()
	if err := NewGroup(cmd).Run(); err == nil {
		t.Fatal("Run() error = nil, want the cancelled command to fail")
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("Run() took %v after cancel", took)
	}
	waitNoSleepers(t, "3141")
}

func TestGroupSweepsLeftovers(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("/bin/sh", "-c", "sleep 3142 &")
	if err := NewGroup(cmd).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	waitNoSleepers(t, "3142")
}

// Not parallel: the signal is sent to the whole test binary.
func TestGroupForwardsTermination(t *testing.T) {
	g := NewGroup(exec.Command("sleep", "3143"))
	if err := g.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill self: %v", err)
	}

	err := g.Wait()
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("Wait() error = %v, want an exit error", err)
	}
	ws, ok := ee.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() || ws.Signal() != syscall.SIGTERM {
		t.Fatalf("wait status = %v, want killed by SIGTERM", ee)
	}
}

func TestProcessLeavesNoDescendants(t *testing.T) {
	tests := []struct {
		name  string
		job   string
		sleep string
	}{
		{name: "child exits and leaves a grandchild", job: "leak", sleep: "3144"},
		{name: "stuck child is killed with its grandchild", job: "orphan", sleep: "3145"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			p, _, _ := helperProcess(t, &out, 300*time.Millisecond)
			p.Env = append(p.Env, sleepArgEnv+"="+tt.sleep)

			p.Execute(context.Background(), Job{Name: tt.job, Timeout: 200 * time.Millisecond})

			waitNoSleepers(t, tt.sleep)
		})
	}
}
