// Package metrics exports scheduler activity as Prometheus metrics. It is fed
// from the event bus and never touches the dispatch loop directly.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serialsched/internal/eventbus"
	"serialsched/internal/task/scheduler"
)

const namespace = "serialsched"

// Metrics owns a private registry so tests and reloads never collide with
// the global one.
type Metrics struct {
	reg *prometheus.Registry

	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	nextDue    *prometheus.GaugeVec
	lag        *prometheus.GaugeVec
	running    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_executions_total",
			Help:      "Dispatched job executions.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of job executions as seen by the scheduler.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		}, []string{"job"}),
		nextDue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_next_due_timestamp_seconds",
			Help:      "Unix time of the next due occurrence.",
		}, []string{"job"}),
		lag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_dispatch_lag_seconds",
			Help:      "Delay between due time and start of the last execution.",
		}, []string{"job"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while a job is executing.",
		}),
	}
	m.reg.MustRegister(
		m.executions, m.duration, m.nextDue, m.lag, m.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe applies one scheduler event.
func (m *Metrics) Observe(e eventbus.Event) {
	ev, ok := e.Data.(scheduler.JobEvent)
	if !ok {
		return
	}
	switch e.Type {
	case scheduler.EventWaiting:
		if !ev.Due.IsZero() {
			m.nextDue.WithLabelValues(ev.Job).Set(float64(ev.Due.Unix()))
		}
	case scheduler.EventExecuting:
		m.executions.WithLabelValues(ev.Job).Inc()
		m.running.Set(1)
		lag := 0.0
		if !ev.Due.IsZero() && ev.Started.After(ev.Due) {
			lag = ev.Started.Sub(ev.Due).Seconds()
		}
		m.lag.WithLabelValues(ev.Job).Set(lag)
		if !ev.Next.IsZero() {
			m.nextDue.WithLabelValues(ev.Job).Set(float64(ev.Next.Unix()))
		}
	case scheduler.EventFinished:
		m.running.Set(0)
		m.duration.WithLabelValues(ev.Job).Observe(ev.Duration.Seconds())
	}
}

// SetSnapshot refreshes the next-due gauge for every registered job.
func (m *Metrics) SetSnapshot(infos []scheduler.ProducerInfo) {
	for _, p := range infos {
		if p.Next.IsZero() {
			continue
		}
		m.nextDue.WithLabelValues(p.Name).Set(float64(p.Next.Unix()))
	}
}

// Follow observes bus events until ctx is done.
func (m *Metrics) Follow(ctx context.Context, bus eventbus.Bus) {
	events, unsubscribe := bus.Subscribe(128,
		scheduler.EventWaiting, scheduler.EventExecuting, scheduler.EventFinished)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}
