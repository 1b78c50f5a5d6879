package reminder

import (
	"fmt"
	"strconv"
	"strings"
)

// ClockTime is a wall-clock time of day without date or zone. The backend
// and the config file both carry it as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" in 24-hour form. Minutes and a zero-padded or
// bare hour are both accepted ("9:00" and "09:00" are the same time).
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return ClockTime{}, fmt.Errorf("clock time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClockTime{}, fmt.Errorf("clock time %q: bad minute", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q: out of range", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *ClockTime) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("clock time: %w", err)
	}
	ct, err := ParseClock(s)
	if err != nil {
		return err
	}
	*t = ct
	return nil
}
