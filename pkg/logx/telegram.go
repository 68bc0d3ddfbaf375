package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	telegramQueueSize  = 256
	telegramSendWait   = 10 * time.Second
	telegramDrainWait  = 3 * time.Second
	telegramLineLimit  = 3500
	telegramValueLimit = 600
	telegramStackLimit = 900
)

// telegramSink is a zerolog LevelWriter that forwards records at or above a
// minimum level to a Sender. Writes never block: records beyond the rate
// limit or the queue size are dropped.
type telegramSink struct {
	sender Sender
	queue  chan string

	mu       sync.Mutex
	minLevel zerolog.Level
	limiter  *rate.Limiter

	startOnce sync.Once
	started   atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func newTelegramSink(sender Sender) *telegramSink {
	return &telegramSink{
		sender:   sender,
		queue:    make(chan string, telegramQueueSize),
		minLevel: zerolog.WarnLevel,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *telegramSink) configure(minLevel zerolog.Level, lim *rate.Limiter) {
	t.mu.Lock()
	t.minLevel, t.limiter = minLevel, lim
	t.mu.Unlock()
	t.startOnce.Do(func() {
		t.started.Store(true)
		go t.run()
	})
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.InfoLevel, p)
}

func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	minLevel, lim := t.minLevel, t.limiter
	t.mu.Unlock()

	if level < minLevel || lim == nil || !lim.Allow() {
		return len(p), nil
	}
	if msg := formatTelegramLine(p); msg != "" {
		select {
		case t.queue <- msg:
		default:
		}
	}
	return len(p), nil
}

func (t *telegramSink) run() {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			t.drain()
			return
		case msg := <-t.queue:
			t.send(context.Background(), msg)
		}
	}
}

// drain sends what is already queued, giving up after telegramDrainWait.
func (t *telegramSink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), telegramDrainWait)
	defer cancel()
	for {
		select {
		case msg := <-t.queue:
			if ctx.Err() != nil {
				return
			}
			t.send(ctx, msg)
		default:
			return
		}
	}
}

func (t *telegramSink) send(ctx context.Context, msg string) {
	sctx, cancel := context.WithTimeout(ctx, telegramSendWait)
	defer cancel()
	_ = t.sender.SendText(sctx, msg)
}

func (t *telegramSink) close() {
	t.closeOnce.Do(func() {
		close(t.stop)
		if t.started.Load() {
			<-t.done
		}
	})
}

// formatTelegramLine renders one zerolog JSON record:
//
//	[ERROR] job.error
//	- job=backup
//	- run_id=...
//	- err=...
//
// Job keys come first, the remaining keys are sorted; time and caller are
// dropped. Lines that are not JSON are sent trimmed.
func formatTelegramLine(p []byte) string {
	p = bytes.TrimSpace(p)
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return clip(string(p), telegramLineLimit)
	}

	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	skip := map[string]bool{
		zerolog.TimestampFieldName: true,
		zerolog.LevelFieldName:     true,
		zerolog.MessageFieldName:   true,
		zerolog.CallerFieldName:    true,
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, c string) int {
		if ra, rc := keyRank(a), keyRank(c); ra != rc {
			return ra - rc
		}
		return strings.Compare(a, c)
	})

	for _, k := range keys {
		v := fmt.Sprint(m[k])
		if k == KeyStack {
			b.WriteString("\n- stack=\n")
			b.WriteString(clip(v, telegramStackLimit))
			continue
		}
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(v, telegramValueLimit))
	}
	return clip(b.String(), telegramLineLimit)
}

func keyRank(k string) int {
	switch k {
	case KeyJob:
		return 0
	case KeyRunID:
		return 1
	case KeyErr:
		return 2
	case KeyStack:
		return 4
	default:
		return 3
	}
}

// clip shortens s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
