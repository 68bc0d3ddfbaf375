package engine

import (
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
)

// forwarded are the termination signals passed on to a running group. The
// group no longer shares the caller's process group, so terminal and
// group-wide signals would otherwise stop at this process.
var forwarded = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Group runs a command as the leader of its own process group. Cancelling the
// command's context kills every process in the group, and Wait sweeps whatever
// the leader left behind, so nothing the command started outlives it.
type Group struct {
	cmd *exec.Cmd

	sigs chan os.Signal
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewGroup prepares cmd; it must not be started yet. A Cancel hook already set
// on cmd is replaced.
func NewGroup(cmd *exec.Cmd) *Group {
	g := &Group{cmd: cmd}
	setGroup(cmd)
	cmd.Cancel = g.Kill
	return g
}

func (g *Group) Start() error {
	if err := g.cmd.Start(); err != nil {
		return err
	}
	g.sigs = make(chan os.Signal, 1)
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	signal.Notify(g.sigs, forwarded...)
	go g.forward()
	return nil
}

// Wait waits for the leader, stops forwarding and kills the rest of the group.
func (g *Group) Wait() error {
	err := g.cmd.Wait()
	g.once.Do(func() {
		signal.Stop(g.sigs)
		close(g.stop)
		<-g.done
	})
	_ = g.Kill()
	return err
}

func (g *Group) Run() error {
	if err := g.Start(); err != nil {
		return err
	}
	return g.Wait()
}

// Kill sends SIGKILL to the whole group. A group that is already gone is not
// an error.
func (g *Group) Kill() error {
	if g.cmd.Process == nil {
		return nil
	}
	err := signalGroup(g.cmd.Process, os.Kill)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (g *Group) forward() {
	defer close(g.done)
	for {
		select {
		case sig := <-g.sigs:
			_ = signalGroup(g.cmd.Process, sig)
		case <-g.stop:
			return
		}
	}
}
