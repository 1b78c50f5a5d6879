package schedule

import "lembra/internal/reminder"

// RuntimeWeekday converts the caller weekday convention (0 = Monday ...
// 6 = Sunday) to the trigger runtime's (1 = Sunday ... 7 = Saturday).
//
// This is the only place the two conventions meet. Do not re-derive the
// mapping elsewhere; getting Sunday wrong here is the classic bug.
func RuntimeWeekday(d reminder.Weekday) int {
	if d == reminder.Sunday {
		return 1
	}
	return int(d) + 2
}
