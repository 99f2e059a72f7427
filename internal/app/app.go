package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"schoolbell/internal/audio"
	"schoolbell/internal/config"
	"schoolbell/internal/eventbus"
	"schoolbell/internal/runtime/sdnotify"
	"schoolbell/internal/runtime/supervisor"
	"schoolbell/internal/scheduler"
	logx "schoolbell/pkg/logx"
)

// Options are the process-level inputs; everything else comes from the config file.
type Options struct {
	ConfigPath string
	// LogLevel overrides settings.log_level when set.
	LogLevel string
	// Fs backs config, audio and log files. Nil means the OS filesystem.
	Fs afero.Fs

	// Backend replaces the configured audio backend (tests).
	Backend audio.Backend
	// Scheduler options, e.g. a fake clock (tests).
	SchedulerOptions []scheduler.Option
	// Notify options for the systemd notifier (tests).
	Notify []sdnotify.Option
}

type App struct {
	cfgm *config.Manager
	cfg  *config.Config
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	backend audio.Backend
	sched   *scheduler.Service
	notify  *sdnotify.Notifier
}

// New loads the config and builds every component. A config that can't be
// read or parsed is returned as an error; nothing is started.
func New(opts Options) (*App, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = config.DefaultPath
	}
	cfgm := config.NewManager(path, opts.Fs)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg, opts))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	for _, w := range config.Validate(cfg) {
		log.Warn("config warning", logx.Err(w))
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = audio.New(cfg.Settings.Backend(), opts.Fs)
		if err != nil {
			logSvc.Close()
			return nil, fmt.Errorf("settings.audio_backend: %w", err)
		}
	}

	bus := eventbus.New()
	notify := sdnotify.New(log.With(logx.String("comp", "systemd")), opts.Notify...)
	schedCfg.Heartbeat = notify.Heartbeat

	sched := scheduler.New(schedCfg, backend, log, bus, opts.SchedulerOptions...)

	return &App{
		cfgm:    cfgm,
		cfg:     cfg,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		backend: backend,
		sched:   sched,
		notify:  notify,
	}, nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Done is closed when the supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	audio.SetVolumeBestEffort(runCtx, a.backend, a.cfg.Settings.Volume())

	a.log.Info("School bell service started.",
		logx.Int("entries", len(a.sched.Entries())),
		logx.String("backend", a.cfg.Settings.Backend()),
		logx.Int("volume", a.cfg.Settings.Volume()),
	)
	a.logNextFires()

	a.notify.Ready()
	a.notify.Status("running")

	a.sup.Go("scheduler", a.sched.Run)

	// Events stay debug-level; the bell lines above already carry the outcome.
	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.sup.Go0("systemd.status", func(c context.Context) {
		a.notify.Forward(c, a.bus, "bell.")
	})

	if a.cfg.Settings.WatchEnabled() {
		// Watcher errors are logged, never fatal.
		a.sup.Go0("config.watch", func(c context.Context) {
			if err := a.cfgm.Watch(c); err != nil && c.Err() == nil {
				a.log.Warn("config watcher stopped", logx.Err(err))
			}
		})
	}
	return nil
}

// Stop cancels every goroutine and waits for them within ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		a.logs.Close()
		return nil
	}
	a.notify.Stopping()

	err := a.sup.Stop(ctx)
	if err != nil {
		a.log.Error("service stopped with error", logx.Err(err))
	} else {
		a.log.Info("School bell service stopped.")
	}
	a.logs.Close()
	return err
}

func (a *App) logNextFires() {
	now := a.sched.Now()
	for _, e := range a.sched.Entries() {
		next, ok := scheduler.NextFire(e, now)
		if !ok {
			a.log.Warn("entry will never fire", logx.String("entry", e.Name), logx.String("time", e.Time))
			continue
		}
		a.log.Debug("next fire",
			logx.String("entry", e.Name),
			logx.String("at", next.Format("Mon 2006-01-02 15:04")),
			logx.Duration("in", next.Sub(now).Truncate(time.Second)),
		)
	}
}
