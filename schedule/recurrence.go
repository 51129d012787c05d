package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidSchedule is wrapped by every day/time parsing error.
	ErrInvalidSchedule = errors.New("schedule: invalid schedule")
	// ErrInvalidDay signals an unknown weekday name.
	ErrInvalidDay = fmt.Errorf("%w: unknown weekday", ErrInvalidSchedule)
	// ErrInvalidTime signals a time that is not HH:MM on a 24-hour clock.
	ErrInvalidTime = fmt.Errorf("%w: time must be HH:MM", ErrInvalidSchedule)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts English weekday names or their three-letter
// abbreviations, in any case.
func ParseWeekday(day string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return wd, nil
}

// ParseClock parses a strict HH:MM 24-hour time.
func ParseClock(clock string) (hour, minute int, err error) {
	clock = strings.TrimSpace(clock)
	if len(clock) != 5 || clock[2] != ':' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	hour, errH := strconv.Atoi(clock[:2])
	minute, errM := strconv.Atoi(clock[3:])
	if errH != nil || errM != nil || clock[0] == '+' || clock[0] == '-' || clock[3] == '+' || clock[3] == '-' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	return hour, minute, nil
}

// NextOccurrence returns the next instant strictly after now that falls on
// day at clock, in now's location. A slot later today is today; a slot
// earlier today, or exactly now, is one week out.
func NextOccurrence(now time.Time, day, clock string) (time.Time, error) {
	wd, err := ParseWeekday(day)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	ahead := (int(wd) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	candidate := time.Date(y, m, d+ahead, hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(y, m, d+ahead+7, hour, minute, 0, 0, now.Location())
	}
	return candidate, nil
}
