// Package schedule is the reminder scheduler: it translates a reminder
// (title, time, weekday set, enabled flag) into the set of weekly triggers
// the runtime should hold, and keeps the persistent handle index in step.
//
// Every mutation runs to completion before returning and is serialized per
// reminder id. Failures are typed:
//   - reminder.ErrInvalid: rejected up front, no side effects
//   - trigger.ErrUnavailable: scheduling failed, this operation's triggers
//     were rolled back
//   - ErrIndexWrite: triggers are live but the index write failed; the
//     caller treats this as a degraded success and relies on retry or the
//     reconciler, never on automatic cancellation
package schedule
