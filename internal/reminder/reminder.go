// Package reminder holds the domain model shared by the scheduler, the
// handle index and the remote sync layer: user-authored reminders, the
// caller-side weekday convention and the composite trigger keys derived
// from them.
package reminder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalid marks malformed reminders. Callers match it with errors.Is.
var ErrInvalid = errors.New("invalid reminder")

// Weekday is the caller-side weekday convention: 0 = Monday ... 6 = Sunday.
//
// This is NOT time.Weekday (which numbers Sunday as 0) and NOT the trigger
// runtime's convention (which numbers Sunday as 1). Conversions live in the
// schedule package, in exactly one place.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// AllDays returns every weekday, Monday first. The remote backend defaults
// new reminders to all seven days.
func AllDays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// NormalizeDays sorts and deduplicates a weekday set. The input is not
// modified. Invalid values are kept (Validate rejects them later); only
// duplicates are collapsed.
func NormalizeDays(days []Weekday) []Weekday {
	if len(days) == 0 {
		return nil
	}
	out := append([]Weekday(nil), days...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, d := range out {
		if i > 0 && d == out[i-1] {
			continue
		}
		out[n] = d
		n++
	}
	return out[:n]
}

// Kind categorizes a reminder for presentation. Values mirror the backend's
// reminder types; unknown values are preserved as-is so a newer backend does
// not break scheduling.
type Kind string

const (
	KindMood       Kind = "mood"
	KindWater      Kind = "water"
	KindBreak      Kind = "break"
	KindSleep      Kind = "sleep"
	KindMeditation Kind = "meditation"
	KindGratitude  Kind = "gratitude"
)

// Reminder is a user-authored recurring reminder. It is passed in whole on
// every scheduler mutation; the scheduler never stores it.
type Reminder struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"type,omitempty"`
	Title   string    `json:"title"`
	Time    ClockTime `json:"time"`
	Days    []Weekday `json:"days"`
	Enabled bool      `json:"enabled"`
}

// Validate rejects reminders the scheduler must not act on. All returned
// errors match ErrInvalid.
func (r Reminder) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if r.Time.Hour < 0 || r.Time.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalid, r.Time.Hour)
	}
	if r.Time.Minute < 0 || r.Time.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalid, r.Time.Minute)
	}
	for _, d := range r.Days {
		if !d.Valid() {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalid, int(d))
		}
	}
	if r.Enabled && len(NormalizeDays(r.Days)) == 0 {
		return fmt.Errorf("%w: enabled reminder needs at least one weekday", ErrInvalid)
	}
	return nil
}
