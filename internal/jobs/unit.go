package jobs

import (
	"context"
	"fmt"

	"serialsched/internal/config"
	"serialsched/internal/task/engine"
	"serialsched/pkg/systemdmanager"
)

// UnitManager performs systemd unit operations.
type UnitManager interface {
	Do(ctx context.Context, unit string, action systemdmanager.Action) error
}

// ConnectUnits opens a system D-Bus connection to systemd.
func ConnectUnits(ctx context.Context) (UnitManager, func() error, error) {
	sm, err := systemdmanager.NewServiceManagerContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sm, sm.Close, nil
}

// UnitWork returns work that performs the configured unit action. connect is
// called on every run, so the bus connection lives inside the isolated child.
func UnitWork(uc config.UnitConfig, connect func(context.Context) (UnitManager, func() error, error)) (engine.Work, error) {
	action, err := systemdmanager.ParseAction(uc.Action)
	if err != nil {
		return nil, err
	}
	unit := systemdmanager.UnitName(uc.Name)
	if connect == nil {
		connect = ConnectUnits
	}
	return func(ctx context.Context) error {
		m, closeFn, err := connect(ctx)
		if err != nil {
			return fmt.Errorf("systemd %s %s: %w", action, unit, err)
		}
		defer func() { _ = closeFn() }()
		return m.Do(ctx, unit, action)
	}, nil
}
