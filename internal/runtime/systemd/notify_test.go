package systemd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/scheduler"
	logx "serialsched/pkg/logx"
)

func TestStatusLine(t *testing.T) {
	t.Parallel()
	due := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		e    eventbus.Event
		want string
	}{
		{"waiting", eventbus.Event{Type: scheduler.EventWaiting, Data: scheduler.JobEvent{Job: "backup", Due: due}}, "next: backup at 2026-01-02T03:04:05Z"},
		{"executing", eventbus.Event{Type: scheduler.EventExecuting, Data: scheduler.JobEvent{Job: "backup"}}, "running: backup"},
		{"finished", eventbus.Event{Type: scheduler.EventFinished, Data: scheduler.JobEvent{Job: "backup"}}, ""},
		{"foreign data", eventbus.Event{Type: scheduler.EventWaiting, Data: "x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLine(tt.e); got != tt.want {
				t.Fatalf("StatusLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotifyWithoutSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")
	n := New(logx.Nop())
	n.Ready()
	n.Status("idle")
	n.Stopping()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	if err := n.Watchdog(ctx); err != nil {
		t.Fatalf("Watchdog() error = %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Watchdog blocked without WATCHDOG_USEC")
	}
}

func TestNotifySendsToSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "sd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "notify")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram unavailable: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", sock)

	n := New(logx.Nop())
	n.Ready()
	n.Status("running: backup")

	buf := make([]byte, 256)
	var got []string
	for range 2 {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		k, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, string(buf[:k]))
	}
	if strings.Join(got, "|") != "READY=1|STATUS=running: backup" {
		t.Fatalf("datagrams = %q", got)
	}
}

func TestPingEveryStopsOnCancel(t *testing.T) {
	t.Parallel()
	n := New(logx.Nop())
	pings := make(chan string, 16)
	n.send = func(state string) (bool, error) {
		select {
		case pings <- state:
		default:
		}
		return true, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.pingEvery(ctx, 5*time.Millisecond) }()

	select {
	case s := <-pings:
		if s != "WATCHDOG=1" {
			t.Fatalf("ping = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no watchdog ping")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("pingEvery() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pingEvery did not return")
	}
}
