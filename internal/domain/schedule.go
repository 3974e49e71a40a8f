package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// ScheduleEntry is a wall-clock time of day with no recurrence.
type ScheduleEntry struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func NewScheduleEntry(hour, minute int) (ScheduleEntry, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ScheduleEntry{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidSchedule, hour, minute)
	}
	return ScheduleEntry{Hour: hour, Minute: minute}, nil
}

// ParseScheduleEntry accepts "H:MM" or "HH:MM".
func ParseScheduleEntry(s string) (ScheduleEntry, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ScheduleEntry{}, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return ScheduleEntry{}, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return ScheduleEntry{}, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
	}
	return NewScheduleEntry(hour, minute)
}

// Next returns the first occurrence of the entry strictly after now, with
// seconds zeroed, in now's location.
func (e ScheduleEntry) Next(now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), e.Hour, e.Minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

func (e ScheduleEntry) String() string {
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}
