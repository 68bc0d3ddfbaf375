package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	logx "serialsched/pkg/logx"
)

const (
	// EnvChild is set to "1" in the environment of isolated child processes.
	EnvChild = "SERIALSCHED_CHILD"
	// EnvRunID carries the run id of the execution into the child.
	EnvRunID = "SERIALSCHED_RUN_ID"

	DefaultKillGrace = 5 * time.Second
)

// Process runs each job in a fresh child process started from the current
// executable. The child must call ServeChild for the named job.
//
// The child shares stdout/stderr with the parent and leads its own process
// group; interrupt and terminate signals the parent receives are forwarded to
// that group. The parent blocks until the child exits, kills the group if the
// child outlives timeout+KillGrace, and sweeps the group afterwards. The exit
// status is not inspected.
type Process struct {
	// Path defaults to os.Executable().
	Path string
	// Args returns the child's argv (without argv[0]) for a job name.
	Args func(job string) []string
	// Env is appended to the inherited environment.
	Env []string

	KillGrace time.Duration

	Stdout io.Writer
	Stderr io.Writer

	Log logx.Logger
}

func (p *Process) Execute(ctx context.Context, job Job) {
	log := p.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.Job(job.Name), logx.RunID(job.RunID))
	log.Info("job.executing")

	path := p.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Error("job.spawn failed", logx.Err(err))
			return
		}
		path = exe
	}

	grace := p.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}
	hardCtx, cancel := context.WithTimeout(ctx, job.Timeout+grace)
	defer cancel()

	var args []string
	if p.Args != nil {
		args = p.Args(job.Name)
	}
	cmd := exec.CommandContext(hardCtx, path, args...)
	cmd.Env = append(append(os.Environ(), p.Env...), EnvChild+"=1", EnvRunID+"="+job.RunID)
	cmd.Stdout = writerOr(p.Stdout, os.Stdout)
	cmd.Stderr = writerOr(p.Stderr, os.Stderr)
	cmd.WaitDelay = grace
	g := NewGroup(cmd)

	if err := g.Start(); err != nil {
		log.Error("job.spawn failed", logx.Err(err))
		return
	}
	_ = g.Wait()

	if errors.Is(hardCtx.Err(), context.DeadlineExceeded) {
		log.Warn("job.killed", logx.Duration("timeout", job.Timeout), logx.Duration("grace", grace))
	}
}

func writerOr(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// IsChild reports whether the current process was started by Process.
func IsChild() bool { return os.Getenv(EnvChild) == "1" }

// ChildRunID returns the run id passed down by the parent, if any.
func ChildRunID() string { return os.Getenv(EnvRunID) }

// ServeChild executes job inside a child process and returns its exit code:
// 0 when the work succeeded or its failure was handled, 1 when the handler
// re-raised.
//
// No signal handlers are installed here on purpose; SIGINT/SIGTERM keep their
// default effect and terminate the child.
func ServeChild(ctx context.Context, log logx.Logger, job Job) int {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.RunID(ChildRunID()))
	if err := Contain(ctx, log, job, job.OnError); err != nil {
		return 1
	}
	return 0
}
