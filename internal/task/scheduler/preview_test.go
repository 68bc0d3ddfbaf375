package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestPreview(t *testing.T) {
	t.Parallel()
	specs := []Spec{
		{Name: "foo", Interval: 10 * time.Second, Timeout: time.Second, Work: noop},
		{Name: "bar", Interval: 5 * time.Second, Timeout: time.Second, Work: noop},
	}
	got, err := Preview(specs, time.UTC, time.Unix(1000, 0), 5)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	want := []struct {
		job string
		at  int64
	}{
		{"bar", 1004}, {"foo", 1009}, {"bar", 1009}, {"bar", 1014}, {"foo", 1019},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Job != w.job || got[i].Due.Unix() != w.at {
			t.Fatalf("occurrence %d = %s@%d, want %s@%d", i, got[i].Job, got[i].Due.Unix(), w.job, w.at)
		}
	}
}

func TestPreviewStopsAtNever(t *testing.T) {
	t.Parallel()
	// 30 February never happens.
	specs := []Spec{{Name: "never", Cron: "0 0 30 2 *", Timeout: time.Second, Work: noop}}
	got, err := Preview(specs, time.UTC, time.Unix(0, 0), 3)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Preview() = %+v, want none", got)
	}
}

func TestPreviewErrors(t *testing.T) {
	t.Parallel()
	if _, err := Preview(nil, nil, time.Now(), 1); !errors.Is(err, ErrNoProducers) {
		t.Fatalf("empty: err = %v", err)
	}
	_, err := Preview([]Spec{{Name: "x", Timeout: time.Second, Work: noop}}, nil, time.Now(), 1)
	if !errors.Is(err, ErrConflictingSchedule) {
		t.Fatalf("no rule: err = %v", err)
	}
}
