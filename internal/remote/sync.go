package remote

import (
	"context"
	"errors"
	"sort"
	"time"

	"lembra/internal/eventbus"
	"lembra/internal/index"
	"lembra/internal/reminder"
	"lembra/internal/schedule"
	"lembra/internal/settings"
	logx "lembra/pkg/logx"
)

// Lister fetches the backend's current reminder set.
type Lister interface {
	List(ctx context.Context) ([]reminder.Reminder, error)
}

// Applier mutates local trigger state. *schedule.Scheduler satisfies it.
type Applier interface {
	Create(ctx context.Context, r reminder.Reminder) error
	Update(ctx context.Context, r reminder.Reminder) error
	Disable(ctx context.Context, reminderID string) error
	Delete(ctx context.Context, reminderID string) error
}

// SettingsSource exposes the current device settings. *settings.Service
// satisfies it.
type SettingsSource interface {
	Current() settings.Settings
}

type SyncConfig struct {
	Interval time.Duration
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{Interval: 5 * time.Minute}
}

// Report summarizes one sync cycle.
type Report struct {
	At          time.Time
	Applied     int // reminders created or reconfigured locally
	Removed     int // reminders cleared locally
	Failed      int // mutations that will be retried next cycle
	DisabledAll bool
}

// SyncService keeps local triggers converged on the backend's reminder set.
//
// Each cycle fetches the remote list and diffs it against the last state it
// applied: new reminders go through Applier.Create, changed ones through
// Applier.Update, vanished ids through Applier.Delete. The first cycle after
// process start is special: the last-applied state is empty while the index
// may not be, so everything is driven through Update, whose cancel-then-create
// semantics rebuild triggers lost to a restart without duplicating any.
//
// When notifications are disabled in settings the service drives every known
// reminder through Applier.Disable instead and forgets its applied state, so
// flipping the setting back on restores everything on the next cycle.
type SyncService struct {
	cfg    SyncConfig
	client Lister
	apply  Applier
	st     SettingsSource
	ix     index.Index
	bus    eventbus.Bus
	log    logx.Logger

	bootstrapped bool
	lastApplied  map[string]reminder.Reminder
}

func NewSync(cfg SyncConfig, client Lister, apply Applier, st SettingsSource, ix index.Index, bus eventbus.Bus, log logx.Logger) *SyncService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncConfig().Interval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SyncService{
		cfg:         cfg,
		client:      client,
		apply:       apply,
		st:          st,
		ix:          ix,
		bus:         bus,
		log:         log,
		lastApplied: make(map[string]reminder.Reminder),
	}
}

// Run executes sync cycles on the configured interval until ctx is done.
// The first cycle runs immediately.
func (s *SyncService) Run(ctx context.Context) {
	s.log.Info("sync started", logx.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync stopped")
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *SyncService) cycle(ctx context.Context) {
	rep, err := s.SyncOnce(ctx)
	if err != nil {
		s.log.Warn("sync cycle failed", logx.Err(err))
		return
	}
	if rep.Applied > 0 || rep.Removed > 0 || rep.Failed > 0 {
		s.publish(rep)
	}
}

// SyncOnce performs a single convergence pass.
func (s *SyncService) SyncOnce(ctx context.Context) (Report, error) {
	rep := Report{At: time.Now()}

	if s.st != nil && !s.st.Current().NotificationsEnabled {
		return s.disableAll(ctx, rep)
	}

	remotes, err := s.client.List(ctx)
	if err != nil {
		return rep, err
	}

	seen := make(map[string]struct{}, len(remotes))
	for _, r := range remotes {
		// The backend treats an absent day list as every day of the week.
		if len(r.Days) == 0 {
			r.Days = reminder.AllDays()
		}
		seen[r.ID] = struct{}{}
		prev, known := s.lastApplied[r.ID]
		if known && equalReminder(prev, r) {
			continue
		}
		op := s.apply.Update
		if !known && s.bootstrapped {
			op = s.apply.Create
		}
		switch err := op(ctx, r); {
		case err == nil:
			s.lastApplied[r.ID] = r
			rep.Applied++
		case errors.Is(err, schedule.ErrIndexWrite):
			// Triggers are live; only the persisted index lags. Count the
			// reminder as applied so the next cycle does not churn triggers.
			s.log.Warn("sync applied with degraded persistence",
				logx.String("reminder_id", r.ID), logx.Err(err))
			s.lastApplied[r.ID] = r
			rep.Applied++
		default:
			s.log.Warn("sync apply failed",
				logx.String("reminder_id", r.ID), logx.Err(err))
			rep.Failed++
		}
	}

	for id := range s.lastApplied {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := s.clearLocal(ctx, id, s.apply.Delete); err != nil {
			s.log.Warn("sync delete failed", logx.String("reminder_id", id), logx.Err(err))
			rep.Failed++
			continue
		}
		delete(s.lastApplied, id)
		rep.Removed++
	}

	s.bootstrapped = true
	return rep, nil
}

// disableAll clears every local trigger while notifications are switched
// off. Reminders stay untouched on the backend.
func (s *SyncService) disableAll(ctx context.Context, rep Report) (Report, error) {
	rep.DisabledAll = true

	ids := make(map[string]struct{}, len(s.lastApplied))
	for id := range s.lastApplied {
		ids[id] = struct{}{}
	}
	// The index can hold triggers from a previous process run.
	if s.ix != nil {
		all, err := s.ix.All(ctx)
		if err != nil {
			return rep, err
		}
		for id := range all {
			ids[id] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		if err := s.clearLocal(ctx, id, s.apply.Disable); err != nil {
			s.log.Warn("disable-all failed", logx.String("reminder_id", id), logx.Err(err))
			rep.Failed++
			continue
		}
		delete(s.lastApplied, id)
		rep.Removed++
	}
	// Forgetting the applied state makes the next enabled cycle re-create
	// everything the backend still has.
	s.bootstrapped = false
	return rep, nil
}

func (s *SyncService) clearLocal(ctx context.Context, id string, op func(context.Context, string) error) error {
	err := op(ctx, id)
	if err == nil || errors.Is(err, schedule.ErrIndexWrite) {
		return nil
	}
	return err
}

func (s *SyncService) publish(rep Report) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: "sync.applied", Time: rep.At, Data: rep})
}

// equalReminder reports whether two reminders would produce the same
// trigger set. Day order is irrelevant.
func equalReminder(a, b reminder.Reminder) bool {
	if a.ID != b.ID || a.Kind != b.Kind || a.Title != b.Title ||
		a.Time != b.Time || a.Enabled != b.Enabled {
		return false
	}
	ad, bd := reminder.NormalizeDays(a.Days), reminder.NormalizeDays(b.Days)
	if len(ad) != len(bd) {
		return false
	}
	for i := range ad {
		if ad[i] != bd[i] {
			return false
		}
	}
	return true
}
