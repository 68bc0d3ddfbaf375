package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"serialsched/internal/config"
	"serialsched/internal/task/engine"
)

const (
	stderrTailBytes = 2048
	// commandWaitDelay bounds how long Wait blocks on output pipes held open
	// by grandchildren after the command itself was killed.
	commandWaitDelay = 2 * time.Second
)

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}

// Output is where command stdout/stderr go; nil fields mean the process's own.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// CommandWork returns work that runs the job's command or shell line. When ctx
// is cancelled (the job timeout) the command and everything it started are
// killed.
//
// In-process the command leads its own process group. Inside an isolated child
// it stays in the child's group, which the parent kills and sweeps.
func CommandWork(jc config.JobConfig, out Output) (engine.Work, error) {
	var argv []string
	switch {
	case len(jc.Command) > 0:
		argv = append([]string(nil), jc.Command...)
	case strings.TrimSpace(jc.Shell) != "":
		argv = []string{"/bin/sh", "-c", jc.Shell}
	default:
		return nil, errors.New("no command")
	}
	env := envList(jc.Env)
	dir := jc.Dir

	return func(ctx context.Context) error {
		tail := newTailBuffer(stderrTailBytes)
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		cmd.Stdout = writerOr(out.Stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(writerOr(out.Stderr, os.Stderr), tail)
		cmd.WaitDelay = commandWaitDelay

		var err error
		if engine.IsChild() {
			err = cmd.Run()
		} else {
			err = engine.NewGroup(cmd).Run()
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return &ExitError{Code: ee.ExitCode(), Stderr: strings.TrimSpace(tail.String())}
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}, nil
}

// envList renders env sorted by key so runs are reproducible.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func writerOr(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
