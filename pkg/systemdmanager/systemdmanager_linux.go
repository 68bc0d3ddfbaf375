//go:build linux

package systemdmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

// ServiceManager performs unit operations over the system D-Bus connection.
type ServiceManager struct {
	mu   sync.RWMutex
	conn *dbus.Conn
}

// NewServiceManagerContext connects to systemd using ctx for the initial
// D-Bus handshake.
func NewServiceManagerContext(ctx context.Context) (*ServiceManager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &ServiceManager{conn: conn}, nil
}

func (sm *ServiceManager) Close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.conn != nil {
		sm.conn.Close()
		sm.conn = nil
	}
	return nil
}

// Do enqueues action for unit in "replace" mode and waits until systemd
// reports the job result or ctx is done.
func (sm *ServiceManager) Do(ctx context.Context, unit string, action Action) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.conn == nil {
		return fmt.Errorf("systemd connection is closed")
	}

	unit = UnitName(unit)
	done := make(chan string, 1)
	var err error
	switch action {
	case ActionStart:
		_, err = sm.conn.StartUnitContext(ctx, unit, "replace", done)
	case ActionStop:
		_, err = sm.conn.StopUnitContext(ctx, unit, "replace", done)
	case ActionRestart:
		_, err = sm.conn.RestartUnitContext(ctx, unit, "replace", done)
	case ActionReload:
		_, err = sm.conn.ReloadUnitContext(ctx, unit, "replace", done)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", action, unit, err)
	}

	select {
	case res := <-done:
		if res != "done" {
			return &JobResultError{Unit: unit, Action: action, Result: res}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
