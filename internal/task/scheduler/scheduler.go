package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/engine"
	logx "serialsched/pkg/logx"
)

// Scheduler runs registered jobs strictly one at a time.
type Scheduler struct {
	log     logx.Logger
	onError engine.ErrorHandler
	runner  engine.Runner
	loc     *time.Location
	clock   Clock
	bus     eventbus.Bus

	// producers is read-only once Run starts.
	producers []*Producer

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	snap atomic.Pointer[[]ProducerInfo]
}

func New(opt Options) *Scheduler {
	log := opt.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	onError := opt.ErrorHandler
	if onError == nil {
		onError = engine.Reraise
	}
	runner := opt.Runner
	if runner == nil {
		runner = engine.NewInProcess(log)
	}
	loc := opt.Location
	if loc == nil {
		loc = time.Local
	}
	clock := opt.Clock
	if clock == nil {
		clock = realClock{}
	}
	s := &Scheduler{
		log:     log,
		onError: onError,
		runner:  runner,
		loc:     loc,
		clock:   clock,
		bus:     opt.Bus,
		stopCh:  make(chan struct{}),
	}
	s.publishSnapshot()
	return s
}

// Add validates spec and registers a new Producer. Registration is only
// allowed before Run and is not safe for concurrent use.
func (s *Scheduler) Add(spec Spec) error {
	if s.started.Load() {
		return ErrRunning
	}
	p, err := NewProducer(spec, s.loc)
	if err != nil {
		return err
	}
	s.producers = append(s.producers, p)
	s.publishSnapshot()
	return nil
}

// Stop makes Run return before its next dispatch. A job that is already
// executing is not interrupted. Safe to call from any goroutine, any number
// of times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
	})
}

func (s *Scheduler) Stopped() bool { return s.stopped.Load() }

// Snapshot returns the registered jobs with their current due times.
// It is safe to call while Run is active.
func (s *Scheduler) Snapshot() []ProducerInfo {
	p := s.snap.Load()
	if p == nil {
		return nil
	}
	return append([]ProducerInfo(nil), (*p)...)
}

// Run blocks, dispatching due jobs one at a time, until Stop is called or ctx
// is cancelled. Cancellation is checked between jobs and once per second while
// waiting; it never aborts a running job. Run returns nil on a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.producers) == 0 {
		return ErrNoProducers
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrRunning
	}
	stopOnCancel := context.AfterFunc(ctx, s.Stop)
	defer stopOnCancel()

	now := s.clock.Now().Unix()
	for _, p := range s.producers {
		p.Start(now)
	}
	s.publishSnapshot()
	s.log.Info("scheduler started", logx.Int("jobs", len(s.producers)))

	for !s.Stopped() {
		p := s.earliest()
		now = s.clock.Now().Unix()
		wait := max(p.next-now, 0)

		if wait > 0 {
			s.log.Info("job.waiting",
				logx.Job(p.name),
				logx.Int64("in", wait),
				logx.Time("at", time.Unix(now, 0)),
			)
			s.publish(EventWaiting, JobEvent{Job: p.name, Due: unixTime(p.next), Wait: time.Duration(wait) * time.Second})
			for i := int64(0); i < wait && !s.Stopped(); i++ {
				s.clock.Sleep(time.Second, s.stopCh)
			}
		}
		if s.Stopped() {
			break
		}

		due := p.next
		// Advance before executing so a long run cannot delay the next grid point.
		p.Advance()
		s.publishSnapshot()
		s.execute(ctx, p, due)
	}

	s.log.Info("scheduler stopped")
	return nil
}

// earliest returns the Producer with the smallest due time; ties go to the
// first registered.
func (s *Scheduler) earliest() *Producer { return earliest(s.producers) }

func earliest(ps []*Producer) *Producer {
	best := ps[0]
	for _, p := range ps[1:] {
		if p.next < best.next {
			best = p
		}
	}
	return best
}

func (s *Scheduler) execute(ctx context.Context, p *Producer, due int64) {
	job := engine.Job{
		Name:    p.name,
		RunID:   uuid.NewString(),
		Timeout: p.timeout,
		Work:    p.work,
		OnError: s.onError,
	}
	started := s.clock.Now()
	ev := JobEvent{Job: p.name, RunID: job.RunID, Due: unixTime(due), Started: started, Next: unixTime(p.next)}
	s.publish(EventExecuting, ev)

	// Detached from ctx: stopping the scheduler never cuts a job short.
	s.runner.Execute(context.WithoutCancel(ctx), job)

	ev.Duration = s.clock.Now().Sub(started)
	s.publish(EventFinished, ev)
}

func (s *Scheduler) publish(typ string, ev JobEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: ev})
}

func (s *Scheduler) publishSnapshot() {
	infos := make([]ProducerInfo, 0, len(s.producers))
	for _, p := range s.producers {
		infos = append(infos, ProducerInfo{
			Name:    p.name,
			Rule:    p.Rule(),
			Timeout: p.timeout,
			Next:    unixTime(p.next),
		})
	}
	s.snap.Store(&infos)
}

func unixTime(ts int64) time.Time {
	if ts == 0 || ts == Never {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}
