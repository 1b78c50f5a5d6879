package trigger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "lembra/pkg/logx"
)

// CronConfig configures the in-process runtime.
type CronConfig struct {
	Timezone string // IANA TZ; empty means local time
}

// FireFunc receives a trigger at its scheduled instant. Implementations must
// not block; delivery queues belong to the notification layer.
type FireFunc func(key, title string)

// CronRuntime implements Runtime on an in-process cron. Fired triggers are
// handed to the FireFunc; the cron entry id doubles as the handle.
type CronRuntime struct {
	mu sync.Mutex

	cfg    CronConfig
	log    logx.Logger
	onFire FireFunc

	parser  cron.Parser
	c       *cron.Cron
	loc     *time.Location
	entries map[string]*cronEntry
}

type cronEntry struct {
	req Request
	id  cron.EntryID
}

func NewCron(cfg CronConfig, onFire FireFunc, log logx.Logger) *CronRuntime {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CronRuntime{
		cfg:     cfg,
		log:     log,
		onFire:  onFire,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: map[string]*cronEntry{},
	}
}

func (r *CronRuntime) Start(ctx context.Context) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}
	loc := r.loadLocationLocked()
	r.loc = loc
	r.c = cron.New(cron.WithParser(r.parser), cron.WithLocation(loc))

	// Re-register anything scheduled before a restart cycle.
	for _, e := range r.entries {
		r.registerLocked(e)
	}
	r.c.Start()
	r.log.Info("trigger runtime started", logx.String("tz", loc.String()), logx.Int("triggers", len(r.entries)))
}

func (r *CronRuntime) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	r.log.Info("trigger runtime stopped")
}

// Apply picks up a timezone change by rebuilding the cron with the same
// trigger set. Handles change across a rebuild; keys do not.
func (r *CronRuntime) Apply(cfg CronConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldTZ := strings.TrimSpace(r.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	r.cfg = cfg

	if r.c == nil || oldTZ == newTZ {
		return
	}
	<-r.c.Stop().Done()
	loc := r.loadLocationLocked()
	r.loc = loc
	r.c = cron.New(cron.WithParser(r.parser), cron.WithLocation(loc))
	for _, e := range r.entries {
		r.registerLocked(e)
	}
	r.c.Start()
	r.log.Info("trigger runtime restarted", logx.String("tz", loc.String()))
}

func (r *CronRuntime) Schedule(ctx context.Context, req Request) (Handle, error) {
	_ = ctx

	if strings.TrimSpace(req.Key) == "" {
		return 0, fmt.Errorf("%w: empty trigger key", ErrUnavailable)
	}
	if req.Weekday < 1 || req.Weekday > 7 {
		return 0, fmt.Errorf("%w: weekday %d outside 1..7", ErrUnavailable, req.Weekday)
	}
	if req.Hour < 0 || req.Hour > 23 || req.Minute < 0 || req.Minute > 59 {
		return 0, fmt.Errorf("%w: time %02d:%02d out of range", ErrUnavailable, req.Hour, req.Minute)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return 0, fmt.Errorf("%w: not started", ErrUnavailable)
	}

	// Replace, never duplicate.
	if old, ok := r.entries[req.Key]; ok && old.id != 0 {
		r.c.Remove(old.id)
		delete(r.entries, req.Key)
	}

	e := &cronEntry{req: req}
	r.entries[req.Key] = e
	if err := r.registerLocked(e); err != nil {
		delete(r.entries, req.Key)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.log.Debug("trigger scheduled",
		logx.String("key", req.Key),
		logx.Int("weekday", req.Weekday),
		logx.String("at", fmt.Sprintf("%02d:%02d", req.Hour, req.Minute)),
	)
	return Handle(e.id), nil
}

func (r *CronRuntime) Cancel(ctx context.Context, key string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil
	}
	if r.c != nil && e.id != 0 {
		r.c.Remove(e.id)
	}
	delete(r.entries, key)
	r.log.Debug("trigger cancelled", logx.String("key", key))
	return nil
}

func (r *CronRuntime) ListAll(ctx context.Context) ([]string, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// registerLocked binds one entry to the cron. The runtime counts weekdays
// from Sunday=1; cron counts from Sunday=0.
func (r *CronRuntime) registerLocked(e *cronEntry) error {
	spec := fmt.Sprintf("%d %d * * %d", e.req.Minute, e.req.Hour, e.req.Weekday-1)
	key, title := e.req.Key, e.req.Title
	id, err := r.c.AddFunc(spec, func() {
		r.fire(key, title)
	})
	if err != nil {
		return err
	}
	e.id = id
	return nil
}

func (r *CronRuntime) fire(key, title string) {
	r.log.Info("trigger fired", logx.String("key", key))
	if r.onFire != nil {
		r.onFire(key, title)
	}
}

func (r *CronRuntime) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(r.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
