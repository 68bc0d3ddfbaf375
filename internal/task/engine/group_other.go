//go:build !linux

package engine

import (
	"os"
	"os/exec"
)

// Process groups are only managed on linux; elsewhere a group is just the
// leader process.
func setGroup(*exec.Cmd) {}

func signalGroup(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}
