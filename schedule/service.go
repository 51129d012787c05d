package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/metrics"
)

// ErrInvalidRequest signals a request missing message, day or time.
var ErrInvalidRequest = errors.New("schedule: message, day and time are required")

// Service validates and persists scheduling requests.
type Service struct {
	repo        Repository
	validate    *validator.Validate
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewService builds a schedule service interpreting weekday/time in loc.
// A nil loc means the local time zone.
func NewService(repo Repository, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:        repo,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		location:    loc,
		idGenerator: uuid.NewString,
		now:         time.Now,
		logger:      logger.Named("schedule-service"),
	}
}

// WithIDGenerator overrides the id generator (useful for tests).
func (s *Service) WithIDGenerator(fn func() string) *Service {
	if fn != nil {
		s.idGenerator = fn
	}
	return s
}

// WithClock overrides the clock (useful for tests).
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Schedule stores a message for the next occurrence of req.Day at req.Time.
// Nothing is persisted when the request is invalid.
func (s *Service) Schedule(ctx context.Context, req Request) (Message, error) {
	if err := s.validate.Struct(req); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.now().In(s.location)
	at, err := NextOccurrence(now, req.Day, req.Time)
	if err != nil {
		return Message{}, err
	}

	msg, err := s.repo.Create(ctx, Message{
		ID:            s.idGenerator(),
		Message:       req.Message,
		ScheduledDay:  req.Day,
		ScheduledTime: req.Time,
		ScheduledDate: at,
		CreatedAt:     now,
	})
	if err != nil {
		return Message{}, err
	}

	metrics.MessagesScheduledTotal.Inc()
	s.logger.Info("message scheduled",
		zap.String("id", msg.ID),
		zap.Time("scheduled_date", msg.ScheduledDate))
	return msg, nil
}

// List returns up to limit scheduled messages, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Message, error) {
	return s.repo.ListRecent(ctx, limit)
}
