package index

import "time"

// Entry ties one composite trigger key to the runtime handle returned when
// the trigger was scheduled. Entries are persisted so triggers can be
// cancelled or reconciled after a restart.
type Entry struct {
	Key    string `json:"key"`
	Handle int64  `json:"handle"`
}

// Config configures the index backend.
//
// Driver values:
//   - "file": snapshot + journal files (no external dependencies)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
