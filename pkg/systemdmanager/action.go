package systemdmanager

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a unit job systemd can be asked to enqueue.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionReload  Action = "reload"
)

var ErrUnknownAction = errors.New("systemdmanager: unknown action")

// ParseAction normalizes raw; empty means restart.
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case "":
		return ActionRestart, nil
	case ActionStart, ActionStop, ActionRestart, ActionReload:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
}

// UnitName appends ".service" to bare service names.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name
	}
	return name + ".service"
}

// JobResultError is returned when systemd finishes a unit job with a result
// other than "done" (failed, timeout, dependency, ...).
type JobResultError struct {
	Unit   string
	Action Action
	Result string
}

func (e *JobResultError) Error() string {
	return fmt.Sprintf("systemd %s %s: %s", e.Action, e.Unit, e.Result)
}
