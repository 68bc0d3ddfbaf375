//go:build !linux

package systemdmanager

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("systemdmanager: unsupported OS (linux only)")

type ServiceManager struct{}

func NewServiceManagerContext(ctx context.Context) (*ServiceManager, error) {
	return nil, ErrUnsupported
}

func (sm *ServiceManager) Close() error { return nil }

func (sm *ServiceManager) Do(ctx context.Context, unit string, action Action) error {
	return ErrUnsupported
}
