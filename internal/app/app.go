// Package app wires configuration, logging, the handle index, the trigger
// runtime, and the background services into one process lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lembra/internal/config"
	"lembra/internal/eventbus"
	"lembra/internal/index"
	"lembra/internal/notify"
	"lembra/internal/reconcile"
	"lembra/internal/remote"
	"lembra/internal/schedule"
	"lembra/internal/settings"
	"lembra/internal/trigger"
	logx "lembra/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	ix   index.Index

	runtime *trigger.CronRuntime
	sched   *schedule.Scheduler
	notif   *notify.Service
	setts   *settings.Service
	syncer  *remote.SyncService
	recon   *reconcile.Reconciler
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	ixCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	ix, err := index.Open(ixCfg, log.With(logx.String("comp", "index")))
	if err != nil {
		return nil, err
	}
	log.Info("handle index opened", logx.String("driver", ixCfg.Driver))

	nCfg, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	sinks, err := buildSinks(cfg, log.With(logx.String("comp", "notify")))
	if err != nil {
		return nil, err
	}
	notifSvc := notify.New(nCfg, sinks, bus, log.With(logx.String("comp", "notify")))

	runtime := trigger.NewCron(trigger.CronConfig{
		Timezone: cfg.Trigger.Timezone,
	}, func(key, title string) {
		if err := notifSvc.Deliver(notify.Notification{Key: key, Title: title}); err != nil {
			log.Warn("trigger delivery rejected", logx.String("key", key), logx.Err(err))
		}
	}, log.With(logx.String("comp", "trigger")))

	sched := schedule.New(runtime, ix, bus, log.With(logx.String("comp", "schedule")))
	setts := settings.NewService(ix, log.With(logx.String("comp", "settings")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		ix:      ix,
		runtime: runtime,
		sched:   sched,
		notif:   notifSvc,
		setts:   setts,
	}

	if rcCfg, scCfg, enabled, err := mapRemoteConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		client, err := remote.NewClient(rcCfg, log.With(logx.String("comp", "remote")))
		if err != nil {
			return nil, err
		}
		a.syncer = remote.NewSync(scCfg, client, sched, setts, ix, bus,
			log.With(logx.String("comp", "sync")))
		log.Info("remote sync enabled",
			logx.String("base_url", rcCfg.BaseURL),
			logx.Duration("interval", scCfg.Interval))
	} else {
		log.Info("remote sync disabled; reminders are managed locally only")
	}

	if reCfg, enabled, err := mapReconcileConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		a.recon = reconcile.New(reCfg, runtime, ix, bus, log.With(logx.String("comp", "reconcile")))
	}

	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error
// or Stop()).
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

// Scheduler exposes the reminder scheduler for callers embedding the app.
func (a *App) Scheduler() *schedule.Scheduler { return a.sched }

// Settings exposes the device settings service.
func (a *App) Settings() *settings.Service { return a.setts }

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error {
			if err := config.Validate(cfg); err != nil {
				return err
			}
			// Mapping failures (bad durations, unknown drivers) must also
			// block a reload.
			if _, err := mapStorageConfig(cfg); err != nil {
				return err
			}
			if _, err := mapNotifyConfig(cfg); err != nil {
				return err
			}
			if _, _, _, err := mapRemoteConfig(cfg); err != nil {
				return err
			}
			if _, _, err := mapReconcileConfig(cfg); err != nil {
				return err
			}
			return nil
		})
	}

	a.runtime.Start(a.sup.Context())
	a.notif.Start(a.sup.Context())

	if _, err := a.setts.Load(a.sup.Context()); err != nil {
		a.log.Warn("settings load failed; using defaults", logx.Err(err))
	}

	// First sync cycle doubles as the restore pass: it replays every
	// remote reminder through the scheduler, rebuilding triggers lost to
	// the restart. Both loops self-heal on panic; local triggers keep
	// firing while they recover.
	if a.syncer != nil {
		a.sup.GoRestart0("remote.sync", a.syncer.Run)
	}
	if a.recon != nil {
		a.sup.GoRestart0("reconcile", a.recon.Run)
	}

	// Surface bus traffic at debug; drift reports additionally raise a
	// notification so the user learns their triggers went out of sync.
	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
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
					if e.Type == "reconcile.drift" {
						a.notifyDrift(e)
					}
				}
			}
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := SummarizeConfigChange(lastApplied, newCfg)
				lastApplied = newCfg
				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}

				a.applyReload(newCfg, sections)

				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyReload hot-applies the sections that support it and calls out the
// ones that need a restart.
func (a *App) applyReload(cfg *Config, sections []string) {
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
		case "trigger":
			// Re-registers every live trigger in the new zone; keys and
			// the index are untouched.
			a.runtime.Apply(trigger.CronConfig{Timezone: cfg.Trigger.Timezone})
		case "notify":
			if nCfg, err := mapNotifyConfig(cfg); err == nil {
				a.notif.Apply(nCfg)
			}
			a.log.Warn("notify sink changes require a restart; pacing applied live")
		case "storage", "remote", "reconcile":
			a.log.Warn("config change requires a restart to take effect",
				logx.String("section", s))
		}
	}
}

// notifyDrift turns a non-clean reconciliation report into a user-visible
// warning. The reconciler already logged the key lists.
func (a *App) notifyDrift(e eventbus.Event) {
	rep, ok := e.Data.(reconcile.Report)
	if !ok || rep.Clean() {
		return
	}
	n := notify.Notification{
		Key: "reconcile_drift",
		Title: fmt.Sprintf("Lembretes fora de sincronia: %d perdidos, %d órfãos",
			len(rep.Missing), len(rep.Orphaned)),
	}
	if err := a.notif.Deliver(n); err != nil {
		a.log.Warn("drift notification rejected", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run each shutdown step under an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Observe when (whether) the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline",
						logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline",
						logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Drain pending notifications before the trigger runtime goes away,
	// then stop triggers, then close the index they both read.
	step("notify", 5*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("trigger", 2*time.Second, func(c context.Context) error { a.runtime.Stop(c); return nil })
	step("index", time.Second, func(c context.Context) error { return a.ix.Close() })

	// Finally, wait for supervised goroutines (sync, reconcile, config watch).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
