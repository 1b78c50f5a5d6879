// Package reconcile periodically compares the handle index against the
// trigger runtime's live set and reports drift. It never repairs: a crash
// between a runtime call and the index write is diagnosed here and resolved
// by the caller retrying the mutation.
package reconcile

import (
	"context"
	"sort"
	"time"

	"lembra/internal/eventbus"
	"lembra/internal/index"
	"lembra/internal/trigger"
	logx "lembra/pkg/logx"
)

// Report is one cycle's findings.
type Report struct {
	At       time.Time
	Missing  []string // indexed but not live in the runtime
	Orphaned []string // live in the runtime but not indexed
}

func (r Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Orphaned) == 0
}

type Config struct {
	// Interval is how often a pass runs. Default: 10 minutes.
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 10 * time.Minute}
}

type Reconciler struct {
	cfg     Config
	runtime trigger.Runtime
	ix      index.Index
	bus     eventbus.Bus
	log     logx.Logger
	clock   func() time.Time
}

func New(cfg Config, rt trigger.Runtime, ix index.Index, bus eventbus.Bus, log logx.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{cfg: cfg, runtime: rt, ix: ix, bus: bus, log: log, clock: time.Now}
}

// Run blocks until ctx is cancelled, checking immediately and then on every
// interval tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info("reconciler started", logx.Duration("interval", r.cfg.Interval))
	r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Reconciler) cycle(ctx context.Context) {
	report, err := r.Check(ctx)
	if err != nil {
		r.log.Warn("reconcile pass failed", logx.Err(err))
		return
	}
	if report.Clean() {
		r.log.Debug("reconcile pass clean")
		return
	}
	r.log.Warn("trigger drift detected",
		logx.Int("missing", len(report.Missing)),
		logx.Int("orphaned", len(report.Orphaned)),
		logx.Strs("missing_keys", report.Missing),
		logx.Strs("orphaned_keys", report.Orphaned),
	)
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: "reconcile.drift", Time: report.At, Data: report})
	}
}

// Check runs a single pass and returns the drift report.
func (r *Reconciler) Check(ctx context.Context) (Report, error) {
	report := Report{At: r.clock()}

	live, err := r.runtime.ListAll(ctx)
	if err != nil {
		return report, err
	}
	all, err := r.ix.All(ctx)
	if err != nil {
		return report, err
	}

	liveSet := make(map[string]bool, len(live))
	for _, k := range live {
		liveSet[k] = true
	}
	indexed := map[string]bool{}
	for _, entries := range all {
		for _, e := range entries {
			indexed[e.Key] = true
			if !liveSet[e.Key] {
				report.Missing = append(report.Missing, e.Key)
			}
		}
	}
	for _, k := range live {
		if !indexed[k] {
			report.Orphaned = append(report.Orphaned, k)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Orphaned)
	return report, nil
}
