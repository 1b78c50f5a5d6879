package schedule

import "errors"

// ErrIndexWrite reports that triggers were (re)scheduled but the handle
// index could not record them. The live trigger set is correct; persistence
// lags until a retry or the next reconciliation pass. Deliberately not
// compensated by cancelling: a transient storage error must not tear down
// freshly scheduled triggers.
var ErrIndexWrite = errors.New("handle index write failed")
