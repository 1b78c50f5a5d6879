package reminder

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	keyPrefix = "reminder_"
	keyDaySep = "_day"
)

// CompositeKey names the trigger registered for one reminder on one weekday.
// The weekday is in the caller convention (0 = Monday). Keys are stable
// across restarts: the same reminder and day always yield the same key.
func CompositeKey(id string, day Weekday) string {
	return fmt.Sprintf("%s%s%s%d", keyPrefix, id, keyDaySep, int(day))
}

// ParseCompositeKey splits a trigger key back into reminder id and weekday.
// Returns ok=false for keys this subsystem did not mint. Reminder ids may
// themselves contain "_day", so the split takes the last occurrence.
func ParseCompositeKey(key string) (id string, day Weekday, ok bool) {
	rest, found := strings.CutPrefix(key, keyPrefix)
	if !found || rest == "" {
		return "", 0, false
	}
	i := strings.LastIndex(rest, keyDaySep)
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(rest[i+len(keyDaySep):])
	if err != nil {
		return "", 0, false
	}
	d := Weekday(n)
	if !d.Valid() {
		return "", 0, false
	}
	return rest[:i], d, true
}
