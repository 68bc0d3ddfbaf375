package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"serialsched/internal/admin"
	"serialsched/internal/alert"
	"serialsched/internal/config"
	"serialsched/internal/eventbus"
	"serialsched/internal/metrics"
	"serialsched/internal/runtime/supervisor"
	"serialsched/internal/runtime/systemd"
	"serialsched/internal/storage"
	"serialsched/internal/task/scheduler"
	logx "serialsched/pkg/logx"
)

const stopTimeout = 5 * time.Second

// App is the scheduler daemon: one dispatch loop plus its observers.
type App struct {
	cfgPath string
	cfgm    *config.ConfigManager

	log  logx.Logger
	logs *logx.Service
	tg   *alert.Telegram

	bus     eventbus.Bus
	store   storage.Store
	metrics *metrics.Metrics
	notify  *systemd.Notifier
	admin   *admin.Server

	sched   atomic.Pointer[scheduler.Scheduler]
	running atomic.Bool
}

// New loads and validates the config at cfgPath and opens every long-lived
// resource. Nothing runs until Run.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgPath, err := absPath(cfgPath)
	if err != nil {
		return nil, err
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(validateRuntime)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	tg, err := newTelegram(cfg)
	if err != nil {
		return nil, err
	}
	var sender logx.Sender
	if tg != nil {
		sender = tg
	}
	logs, log := logx.New(mapLogConfig(cfg), sender)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logs.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		tg:      tg,
		bus:     eventbus.New(),
		store:   store,
		metrics: metrics.New(),
		notify:  systemd.New(log.With(logx.String("comp", "systemd"))),
		admin:   admin.NewServer(log),
	}, nil
}

// Running reports whether a dispatch loop is active.
func (a *App) Running() bool { return a.running.Load() }

// Jobs returns the snapshot of the active scheduler.
func (a *App) Jobs() []scheduler.ProducerInfo {
	if s := a.sched.Load(); s != nil {
		return s.Snapshot()
	}
	return nil
}

// Run dispatches jobs until ctx is cancelled or a fatal error occurs. With
// scheduler.reload_on_change, a validated config change stops the current
// scheduler after its running job and starts a fresh one.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	sctx := sup.Context()
	cfg := a.cfgm.Get()

	sup.Go0("metrics.follow", func(c context.Context) { a.metrics.Follow(c, a.bus) })
	sup.Go0("systemd.status", func(c context.Context) { a.notify.Follow(c, a.bus) })
	sup.GoRestart("systemd.watchdog", a.notify.Watchdog, supervisor.WithMaxRestarts(3))
	if a.store != nil {
		sup.Go0("history.record", func(c context.Context) {
			storage.Record(c, a.bus, a.store, a.log.With(logx.String("comp", "history")))
		})
	}

	var reloads <-chan *config.Config
	if cfg.Scheduler.ReloadOnChange {
		reloads = a.cfgm.Subscribe(1)
		defer a.cfgm.Unsubscribe(reloads)
		sup.GoRestart("config.watch", a.cfgm.Watch)
	}

	a.applyAdmin(cfg)

	reason, runErr := a.loop(sctx, cfg, reloads)
	if reason == StopSignal && ctx.Err() == nil {
		// sctx was cancelled by a failing supervised goroutine.
		reason = StopFatalError
	}
	a.shutdown(sup, reason)

	if runErr != nil {
		return runErr
	}
	if reason == StopFatalError {
		return sup.Err()
	}
	return nil
}

func (a *App) loop(ctx context.Context, cfg *config.Config, reloads <-chan *config.Config) (StopReason, error) {
	for {
		onError, err := errorHandler(cfg, a.cfgPath, a.tg, a.log)
		if err != nil {
			return StopFatalError, err
		}
		sched, err := newScheduler(cfg, a.cfgPath, onError, a.bus, a.logs.Logger())
		if err != nil {
			return StopFatalError, err
		}
		a.sched.Store(sched)
		a.metrics.SetSnapshot(sched.Snapshot())

		done := make(chan error, 1)
		a.running.Store(true)
		go func() { done <- sched.Run(ctx) }()
		a.notify.Ready()

		select {
		case <-ctx.Done():
			sched.Stop()
			err := <-done
			a.running.Store(false)
			return StopSignal, err

		case err := <-done:
			a.running.Store(false)
			if err == nil {
				err = errors.New("scheduler exited")
			}
			return StopScheduler, err

		case newCfg := <-reloads:
			a.notify.Reloading()
			a.log.Info("config changed; restarting scheduler after the current job")
			sched.Stop()
			if err := <-done; err != nil {
				a.running.Store(false)
				return StopScheduler, err
			}
			a.running.Store(false)
			a.applyConfig(cfg, newCfg)
			cfg = newCfg
		}
	}
}

// applyConfig applies the sections that can change without a restart of the
// process. Jobs and scheduler settings take effect through the rebuild.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, changes := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("scheduler restarted (no effective changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	if !changes.Empty() {
		fields = append(fields,
			logx.Any("added", changes.Added),
			logx.Any("removed", changes.Removed),
			logx.Any("changed_jobs", changes.Changed),
		)
	}
	a.log.Info("scheduler restarted with new config", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(newCfg))
		case "admin":
			a.applyAdmin(newCfg)
		case "storage", "telegram":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
}

func (a *App) applyAdmin(cfg *config.Config) {
	if !cfg.Admin.Enabled {
		a.admin.Stop(context.Background())
		return
	}
	h := admin.NewRouter(admin.Deps{
		Log:     a.log.With(logx.String("comp", "admin")),
		Jobs:    a.Jobs,
		Running: a.Running,
		Metrics: a.metrics.Handler(),
		History: a.store,
	})
	if err := a.admin.Start(cfg.Admin.Address(), h); err != nil {
		a.log.Warn("admin listen failed", logx.String("addr", cfg.Admin.Address()), logx.Err(err))
	}
}

func (a *App) shutdown(sup *supervisor.Supervisor, reason StopReason) {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.Stopping()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	a.admin.Stop(ctx)
	if err := sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("supervisor stop", logx.Err(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}
