package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSchedule_PersistsNextOccurrence(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, time.UTC, zap.NewNop()).
		WithIDGenerator(func() string { return "msg-1" }).
		WithClock(func() time.Time { return wednesdayNoon })

	msg, err := svc.Schedule(context.Background(), Request{Message: "renewal reminder", Day: "Wednesday", Time: "11:59"})
	if err != nil {
		t.Fatalf("schedule: unexpected error: %v", err)
	}

	if msg.ID != "msg-1" {
		t.Fatalf("expected id msg-1, got %s", msg.ID)
	}
	want := time.Date(2024, 5, 22, 11, 59, 0, 0, time.UTC)
	if !msg.ScheduledDate.Equal(want) {
		t.Fatalf("expected %v, got %v", want, msg.ScheduledDate)
	}
	if !msg.ScheduledDate.After(msg.CreatedAt) {
		t.Fatalf("scheduled date %v must be after creation %v", msg.ScheduledDate, msg.CreatedAt)
	}
	if msg.IsSent || msg.SentAt != nil {
		t.Fatalf("new message must be pending")
	}
	if _, ok := repo.messages["msg-1"]; !ok {
		t.Fatalf("expected message to be persisted")
	}
}

func TestSchedule_RejectsWithoutPersisting(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing message", Request{Day: "Monday", Time: "10:00"}, ErrInvalidRequest},
		{"missing day", Request{Message: "hi", Time: "10:00"}, ErrInvalidRequest},
		{"missing time", Request{Message: "hi", Day: "Monday"}, ErrInvalidRequest},
		{"bad day", Request{Message: "hi", Day: "Caturday", Time: "10:00"}, ErrInvalidDay},
		{"bad time", Request{Message: "hi", Day: "Monday", Time: "25:99"}, ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			svc := NewService(repo, time.UTC, zap.NewNop())

			_, err := svc.Schedule(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(repo.messages) != 0 {
				t.Fatalf("expected nothing persisted, got %d messages", len(repo.messages))
			}
		})
	}
}

func TestSchedule_InterpretsInConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*60*60)
	repo := newFakeRepository()
	svc := NewService(repo, loc, zap.NewNop()).WithClock(func() time.Time { return wednesdayNoon })

	msg, err := svc.Schedule(context.Background(), Request{Message: "m", Day: "Wednesday", Time: "06:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 12:00 UTC is 05:00 in UTC-7, so 06:00 is still ahead today.
	want := time.Date(2024, 5, 15, 6, 0, 0, 0, loc)
	if !msg.ScheduledDate.Equal(want) {
		t.Fatalf("expected %v, got %v", want, msg.ScheduledDate)
	}
}

func TestList(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, time.UTC, zap.NewNop())
	repo.messages["a"] = Message{ID: "a", CreatedAt: wednesdayNoon}
	repo.messages["b"] = Message{ID: "b", CreatedAt: wednesdayNoon.Add(time.Minute)}

	got, err := svc.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", got)
	}
}
