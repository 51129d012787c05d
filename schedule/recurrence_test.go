package schedule

import (
	"errors"
	"testing"
	"time"
)

// 2024-05-15 is a Wednesday.
var wednesdayNoon = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name  string
		day   string
		clock string
		want  time.Time
	}{
		{"later today stays today", "Wednesday", "18:30", time.Date(2024, 5, 15, 18, 30, 0, 0, time.UTC)},
		{"one minute ago is next week", "wednesday", "11:59", time.Date(2024, 5, 22, 11, 59, 0, 0, time.UTC)},
		{"exactly now is next week", "WEDNESDAY", "12:00", time.Date(2024, 5, 22, 12, 0, 0, 0, time.UTC)},
		{"later this week", "Friday", "09:00", time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)},
		{"earlier weekday wraps", "Monday", "00:00", time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)},
		{"abbreviation", "sun", "23:59", time.Date(2024, 5, 19, 23, 59, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(wednesdayNoon, tt.day, tt.clock)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if !got.After(wednesdayNoon) {
				t.Fatalf("occurrence %v is not after now", got)
			}
		})
	}
}

func TestNextOccurrence_OneMinuteAgoIsExactlyOneWeekAhead(t *testing.T) {
	past := wednesdayNoon.Add(-time.Minute)

	got, err := NextOccurrence(wednesdayNoon, "Wednesday", past.Format("15:04"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := past.AddDate(0, 0, 7); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextOccurrence_UsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2024, time.May, 15, 8, 0, 0, 0, loc)

	got, err := NextOccurrence(now, "Wednesday", "09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location() != loc || got.Hour() != 9 || got.Day() != 15 {
		t.Fatalf("expected 09:00 on the 15th in %s, got %v", loc, got)
	}
}

func TestNextOccurrence_Rejects(t *testing.T) {
	tests := []struct {
		day, clock string
		want       error
	}{
		{"Funday", "10:00", ErrInvalidDay},
		{"", "10:00", ErrInvalidDay},
		{"Monday", "25:99", ErrInvalidTime},
		{"Monday", "24:00", ErrInvalidTime},
		{"Monday", "9:00", ErrInvalidTime},
		{"Monday", "09:60", ErrInvalidTime},
		{"Monday", "+9:00", ErrInvalidTime},
		{"Monday", "09-00", ErrInvalidTime},
	}

	for _, tt := range tests {
		_, err := NextOccurrence(wednesdayNoon, tt.day, tt.clock)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s %s: expected %v, got %v", tt.day, tt.clock, tt.want, err)
		}
		if !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("%s %s: expected error to wrap ErrInvalidSchedule", tt.day, tt.clock)
		}
	}
}
