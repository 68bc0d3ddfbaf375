package alert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"serialsched/internal/task/engine"
	logx "serialsched/pkg/logx"
)

// Sender delivers one text message.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

// Throttle suppresses repeated alerts for the same job. State lives in marker
// files so it survives across isolated child processes. Dir must be private to
// the daemon; NewThrottle creates it with mode 0700.
type Throttle struct {
	Dir         string
	MinInterval time.Duration
	now         func() time.Time
}

// NewThrottle prepares dir and refuses one that other users can write to.
func NewThrottle(dir string, minInterval time.Duration) (*Throttle, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("alert state dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("alert state dir: %w", err)
	}
	st, err := os.Lstat(dir)
	if err != nil {
		return nil, fmt.Errorf("alert state dir: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("alert state dir %s is not a directory", dir)
	}
	if st.Mode().Perm()&0o022 != 0 {
		return nil, fmt.Errorf("alert state dir %s is writable by other users (mode %v)", dir, st.Mode().Perm())
	}
	return &Throttle{Dir: dir, MinInterval: minInterval}, nil
}

// Allow reports whether job may alert now and, if so, records the attempt.
// The marker's mtime is the only state: it is created exclusively, never
// written through, and anything other than a regular file is replaced.
func (t *Throttle) Allow(job string) bool {
	if t == nil || t.MinInterval <= 0 || t.Dir == "" {
		return true
	}
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	ts := now()
	marker := filepath.Join(t.Dir, "alert-"+sanitize(job))

	st, err := os.Lstat(marker)
	switch {
	case err == nil && st.Mode().IsRegular():
		if ts.Sub(st.ModTime()) < t.MinInterval {
			return false
		}
		_ = os.Chtimes(marker, ts, ts)
		return true
	case err == nil:
		if os.Remove(marker) != nil {
			return true
		}
	case !errors.Is(err, fs.ErrNotExist):
		return true
	}

	f, err := os.OpenFile(marker, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return true
	}
	_ = f.Close()
	_ = os.Chtimes(marker, ts, ts)
	return true
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

// Handler returns an ErrorHandler that logs, alerts and swallows the error.
// A failed send is logged, never raised.
func Handler(s Sender, th *Throttle, log logx.Logger) engine.ErrorHandler {
	if log.IsZero() {
		log = logx.Nop()
	}
	host, _ := os.Hostname()
	return func(err error) {
		job := "unknown"
		var je *engine.JobError
		if errors.As(err, &je) {
			job = je.Job
		}
		if !th.Allow(job) {
			log.Debug("alert throttled", logx.Job(job))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if serr := s.SendText(ctx, Format(host, engine.ChildRunID(), err)); serr != nil {
			log.Warn("alert send failed", logx.Job(job), logx.Err(serr))
		}
	}
}

// Format renders the alert text for a contained job failure.
func Format(host, runID string, err error) string {
	kind := "failed"
	switch {
	case errors.Is(err, engine.ErrTimeout):
		kind = "timed out"
	case isPanic(err):
		kind = "panicked"
	}
	job := "?"
	cause := err
	var je *engine.JobError
	if errors.As(err, &je) {
		job, cause = je.Job, je.Err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "serialsched: job %s %s\n", job, kind)
	fmt.Fprintf(&b, "error: %v\n", cause)
	if host != "" {
		fmt.Fprintf(&b, "host: %s\n", host)
	}
	if runID != "" {
		fmt.Fprintf(&b, "run: %s\n", runID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func isPanic(err error) bool {
	var pe *engine.PanicError
	return errors.As(err, &pe)
}
