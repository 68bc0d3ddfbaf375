package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/scheduler"
)

func TestObserve(t *testing.T) {
	m := New()
	due := time.Unix(1_700_000_000, 0)

	m.Observe(eventbus.Event{Type: scheduler.EventWaiting, Data: scheduler.JobEvent{Job: "backup", Due: due}})
	if got := testutil.ToFloat64(m.nextDue.WithLabelValues("backup")); got != float64(due.Unix()) {
		t.Fatalf("next due = %v, want %v", got, due.Unix())
	}

	m.Observe(eventbus.Event{Type: scheduler.EventExecuting, Data: scheduler.JobEvent{
		Job: "backup", Due: due, Started: due.Add(3 * time.Second), Next: due.Add(time.Hour),
	}})
	if got := testutil.ToFloat64(m.executions.WithLabelValues("backup")); got != 1 {
		t.Fatalf("executions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lag.WithLabelValues("backup")); got != 3 {
		t.Fatalf("lag = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.running); got != 1 {
		t.Fatalf("running = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.nextDue.WithLabelValues("backup")); got != float64(due.Add(time.Hour).Unix()) {
		t.Fatalf("next due after dispatch = %v", got)
	}

	m.Observe(eventbus.Event{Type: scheduler.EventFinished, Data: scheduler.JobEvent{Job: "backup", Duration: 2 * time.Second}})
	if got := testutil.ToFloat64(m.running); got != 0 {
		t.Fatalf("running = %v, want 0", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}

	// Foreign payloads are ignored.
	m.Observe(eventbus.Event{Type: scheduler.EventExecuting, Data: "noise"})
	if got := testutil.ToFloat64(m.executions.WithLabelValues("backup")); got != 1 {
		t.Fatalf("executions = %v after foreign event, want 1", got)
	}
}

func TestFollowAndHandler(t *testing.T) {
	m := New()
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Follow(ctx, bus)
	time.Sleep(50 * time.Millisecond)

	bus.Publish(eventbus.Event{Type: scheduler.EventExecuting, Data: scheduler.JobEvent{Job: "report"}})

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.executions.WithLabelValues("report")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event not observed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`serialsched_job_executions_total{job="report"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestSetSnapshot(t *testing.T) {
	m := New()
	next := time.Unix(1_700_003_600, 0)
	m.SetSnapshot([]scheduler.ProducerInfo{{Name: "a", Next: next}, {Name: "b"}})
	if got := testutil.ToFloat64(m.nextDue.WithLabelValues("a")); got != float64(next.Unix()) {
		t.Fatalf("next due = %v", got)
	}
	if n := testutil.CollectAndCount(m.nextDue); n != 1 {
		t.Fatalf("next due series = %d, want 1", n)
	}
}
