package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

type fakeRepository struct {
	mu       sync.Mutex
	messages map[string]Message
	listErr  error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{messages: make(map[string]Message)}
}

func (f *fakeRepository) Create(ctx context.Context, msg Message) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	due := make([]Message, 0)
	for _, m := range f.messages {
		if !m.IsSent && !m.ScheduledDate.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledDate.Before(due[j].ScheduledDate) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.messages[id]
	if !ok {
		return ErrNotFound
	}
	if m.IsSent {
		return ErrAlreadySent
	}
	m.IsSent = true
	m.SentAt = &at
	f.messages[id] = m
	return nil
}

func (f *fakeRepository) ListRecent(ctx context.Context, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) get(id string) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id]
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]error
	block chan struct{}
	began chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.began != nil {
		select {
		case s.began <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[msg.ID]; ok {
		return err
	}
	s.sent = append(s.sent, msg.ID)
	return nil
}

func (s *recordingSender) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}
