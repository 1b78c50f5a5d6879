// Package trigger wraps the host's "schedule a repeating local alert"
// capability behind a small runtime interface. Keys name triggers; handles
// are the runtime's own tokens and matter only for diagnostics.
package trigger

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the runtime cannot schedule or cancel.
// Callers match it with errors.Is.
var ErrUnavailable = errors.New("trigger runtime unavailable")

// Handle is the runtime's opaque token for one live trigger.
type Handle int64

// Request describes one repeating weekly trigger.
//
// Weekday is in the runtime convention, 1 = Sunday ... 7 = Saturday. The
// scheduling layer owns the conversion from the caller convention; nothing
// here converts.
type Request struct {
	Key     string
	Weekday int
	Hour    int
	Minute  int
	Title   string
}

// Runtime is the trigger runtime boundary.
//
// Semantics the scheduling layer depends on:
//   - Schedule with an already-registered key replaces the old trigger.
//   - Cancel of an absent key is not an error.
//   - ListAll is for reconciliation, not the mutation path.
type Runtime interface {
	Schedule(ctx context.Context, req Request) (Handle, error)
	Cancel(ctx context.Context, key string) error
	ListAll(ctx context.Context) ([]string, error)
}
