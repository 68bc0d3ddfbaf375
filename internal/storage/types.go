package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file, append-only
//   - "sqlite": SQLite database file (modernc, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord is one dispatched execution as seen by the scheduler.
// Keep it compact and schema-stable.
type RunRecord struct {
	ID       string        `json:"id"`
	Job      string        `json:"job"`
	Due      time.Time     `json:"due"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
}

// Lag is how late the run started relative to its due time.
func (r RunRecord) Lag() time.Duration {
	if r.Due.IsZero() || r.Started.Before(r.Due) {
		return 0
	}
	return r.Started.Sub(r.Due)
}
