package schedule

import (
	"context"
	"fmt"
	"strings"

	"lembra/internal/eventbus"
	"lembra/internal/index"
	"lembra/internal/reminder"
	"lembra/internal/trigger"
	logx "lembra/pkg/logx"
)

// MutationEvent is the bus payload published after a completed mutation.
type MutationEvent struct {
	ID       string
	Op       string // create | update | enable | disable | delete
	Triggers int
}

// Scheduler drives reminder mutations through the trigger runtime and the
// handle index. Safe for concurrent use; operations on the same reminder id
// are serialized, distinct ids proceed in parallel.
type Scheduler struct {
	runtime trigger.Runtime
	index   index.Index
	bus     eventbus.Bus
	log     logx.Logger
	locks   *keyedMutex
}

func New(rt trigger.Runtime, ix index.Index, bus eventbus.Bus, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		runtime: rt,
		index:   ix,
		bus:     bus,
		log:     log,
		locks:   newKeyedMutex(),
	}
}

// Create schedules a new reminder. One trigger per weekday, all or nothing:
// if any schedule call fails, triggers already registered by this call are
// cancelled and the reminder ends with zero live triggers.
//
// A disabled reminder is accepted and schedules nothing.
func (s *Scheduler) Create(ctx context.Context, r reminder.Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}
	unlock := s.locks.lock(r.ID)
	defer unlock()

	if !r.Enabled {
		s.log.Debug("create for disabled reminder, nothing scheduled", logx.String("id", r.ID))
		return nil
	}
	if err := s.scheduleAll(ctx, r); err != nil {
		return err
	}
	s.publish("reminder.scheduled", MutationEvent{ID: r.ID, Op: "create", Triggers: len(reminder.NormalizeDays(r.Days))})
	return nil
}

// Update replaces whatever is scheduled for the reminder with the state
// described by r: cancel everything currently indexed, then recreate. The
// full replace is deliberate; diffing day sets buys little here and opens a
// class of partial-update bugs.
func (s *Scheduler) Update(ctx context.Context, r reminder.Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}
	unlock := s.locks.lock(r.ID)
	defer unlock()

	removeErr := s.clearLocked(ctx, r.ID)

	if !r.Enabled {
		if removeErr != nil {
			return removeErr
		}
		s.publish("reminder.cleared", MutationEvent{ID: r.ID, Op: "update"})
		return nil
	}
	if err := s.scheduleAll(ctx, r); err != nil {
		return err
	}
	s.publish("reminder.scheduled", MutationEvent{ID: r.ID, Op: "update", Triggers: len(reminder.NormalizeDays(r.Days))})
	return nil
}

// Enable schedules the reminder's current days and time regardless of the
// enabled flag passed in.
func (s *Scheduler) Enable(ctx context.Context, r reminder.Reminder) error {
	r.Enabled = true
	if err := r.Validate(); err != nil {
		return err
	}
	unlock := s.locks.lock(r.ID)
	defer unlock()

	if err := s.scheduleAll(ctx, r); err != nil {
		return err
	}
	s.publish("reminder.scheduled", MutationEvent{ID: r.ID, Op: "enable", Triggers: len(reminder.NormalizeDays(r.Days))})
	return nil
}

// Disable cancels every trigger for the reminder and drops its index entry.
// Disabling an unknown or already-disabled reminder is a no-op.
func (s *Scheduler) Disable(ctx context.Context, reminderID string) error {
	return s.clear(ctx, reminderID, "disable")
}

// Delete is Disable under another name: the reminder entity itself lives
// with the caller, this subsystem only owns its triggers.
func (s *Scheduler) Delete(ctx context.Context, reminderID string) error {
	return s.clear(ctx, reminderID, "delete")
}

func (s *Scheduler) clear(ctx context.Context, reminderID, op string) error {
	if strings.TrimSpace(reminderID) == "" {
		return fmt.Errorf("%w: empty id", reminder.ErrInvalid)
	}
	unlock := s.locks.lock(reminderID)
	defer unlock()

	if err := s.clearLocked(ctx, reminderID); err != nil {
		return err
	}
	s.publish("reminder.cleared", MutationEvent{ID: reminderID, Op: op})
	return nil
}

// clearLocked cancels all indexed triggers for the id and removes the index
// entry. Cancel failures are logged and treated as success: an absent
// trigger and a failed cancel are indistinguishable, and both end with the
// trigger not firing under a key we are about to stop tracking.
func (s *Scheduler) clearLocked(ctx context.Context, reminderID string) error {
	cur, err := s.index.Get(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("handle index read: %w", err)
	}
	for _, e := range cur {
		if err := s.runtime.Cancel(ctx, e.Key); err != nil {
			s.log.Warn("trigger cancel failed", logx.String("key", e.Key), logx.Err(err))
		}
	}
	if err := s.index.Remove(ctx, reminderID); err != nil {
		s.log.Warn("handle index remove failed", logx.String("id", reminderID), logx.Err(err))
		return fmt.Errorf("%w: %v", ErrIndexWrite, err)
	}
	return nil
}

// scheduleAll registers one trigger per weekday and records the handles.
// Runs under the per-id lock.
func (s *Scheduler) scheduleAll(ctx context.Context, r reminder.Reminder) error {
	days := reminder.NormalizeDays(r.Days)
	entries := make([]index.Entry, 0, len(days))
	for _, day := range days {
		key := reminder.CompositeKey(r.ID, day)
		h, err := s.runtime.Schedule(ctx, trigger.Request{
			Key:     key,
			Weekday: RuntimeWeekday(day),
			Hour:    r.Time.Hour,
			Minute:  r.Time.Minute,
			Title:   r.Title,
		})
		if err != nil {
			s.rollback(ctx, entries)
			return fmt.Errorf("schedule %s: %w", key, err)
		}
		entries = append(entries, index.Entry{Key: key, Handle: int64(h)})
	}
	if err := s.index.Put(ctx, r.ID, entries); err != nil {
		// Triggers are live; leave them. A transient storage error must not
		// tear down a correct trigger set.
		s.log.Warn("handle index write failed, triggers live but unrecorded",
			logx.String("id", r.ID), logx.Int("triggers", len(entries)), logx.Err(err))
		return fmt.Errorf("%w: %v", ErrIndexWrite, err)
	}
	s.log.Info("reminder scheduled",
		logx.String("id", r.ID),
		logx.String("at", r.Time.String()),
		logx.Int("triggers", len(entries)),
	)
	return nil
}

// rollback cancels triggers scheduled earlier in the same failed operation.
func (s *Scheduler) rollback(ctx context.Context, entries []index.Entry) {
	for _, e := range entries {
		if err := s.runtime.Cancel(ctx, e.Key); err != nil {
			s.log.Warn("rollback cancel failed", logx.String("key", e.Key), logx.Err(err))
		}
	}
}

func (s *Scheduler) publish(typ string, ev MutationEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
