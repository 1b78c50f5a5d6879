package reminder

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{in: "09:00", want: ClockTime{9, 0}},
		{in: "9:5", want: ClockTime{9, 5}},
		{in: "00:00", want: ClockTime{0, 0}},
		{in: "23:59", want: ClockTime{23, 59}},
		{in: " 12:30 ", want: ClockTime{12, 30}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12:00:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClockTimeJSON(t *testing.T) {
	b, err := json.Marshal(ClockTime{Hour: 7, Minute: 5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"07:05"` {
		t.Fatalf("marshal = %s, want %q", b, "07:05")
	}
	var ct ClockTime
	if err := json.Unmarshal([]byte(`"21:30"`), &ct); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ct != (ClockTime{21, 30}) {
		t.Fatalf("unmarshal = %v, want 21:30", ct)
	}
	if err := json.Unmarshal([]byte(`"25:00"`), &ct); err == nil {
		t.Fatal("unmarshal out-of-range hour: expected error")
	}
}

func TestNormalizeDays(t *testing.T) {
	tests := []struct {
		name string
		in   []Weekday
		want []Weekday
	}{
		{name: "nil", in: nil, want: nil},
		{name: "sorted", in: []Weekday{Monday, Wednesday, Friday}, want: []Weekday{Monday, Wednesday, Friday}},
		{name: "unsorted", in: []Weekday{Friday, Monday, Wednesday}, want: []Weekday{Monday, Wednesday, Friday}},
		{name: "duplicates", in: []Weekday{Sunday, Sunday, Monday, Sunday}, want: []Weekday{Monday, Sunday}},
		{name: "all days", in: []Weekday{Saturday, Friday, Thursday, Wednesday, Tuesday, Monday, Sunday}, want: AllDays()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]Weekday(nil), tt.in...)
			got := NormalizeDays(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("NormalizeDays(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if !reflect.DeepEqual(tt.in, in) {
				t.Fatalf("NormalizeDays modified its input: %v", tt.in)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Reminder{
		ID:      "r1",
		Kind:    KindWater,
		Title:   "Beber Água",
		Time:    ClockTime{Hour: 9},
		Days:    []Weekday{Monday, Wednesday, Friday},
		Enabled: true,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid reminder rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Reminder)
	}{
		{name: "empty id", mutate: func(r *Reminder) { r.ID = "" }},
		{name: "blank id", mutate: func(r *Reminder) { r.ID = "  " }},
		{name: "hour high", mutate: func(r *Reminder) { r.Time.Hour = 24 }},
		{name: "hour negative", mutate: func(r *Reminder) { r.Time.Hour = -1 }},
		{name: "minute high", mutate: func(r *Reminder) { r.Time.Minute = 60 }},
		{name: "weekday high", mutate: func(r *Reminder) { r.Days = []Weekday{7} }},
		{name: "weekday negative", mutate: func(r *Reminder) { r.Days = []Weekday{-1} }},
		{name: "enabled without days", mutate: func(r *Reminder) { r.Days = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Days = append([]Weekday(nil), valid.Days...)
			tt.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("error %v does not match ErrInvalid", err)
			}
		})
	}

	disabled := valid
	disabled.Enabled = false
	disabled.Days = nil
	if err := disabled.Validate(); err != nil {
		t.Fatalf("disabled reminder without days rejected: %v", err)
	}
}

func TestWeekdayString(t *testing.T) {
	if got := Monday.String(); got != "Mon" {
		t.Fatalf("Monday.String() = %q", got)
	}
	if got := Sunday.String(); got != "Sun" {
		t.Fatalf("Sunday.String() = %q", got)
	}
	if got := Weekday(9).String(); got != "Weekday(9)" {
		t.Fatalf("Weekday(9).String() = %q", got)
	}
}
