package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/customer"
)

// ErrEmptyQuery signals a search without a name fragment.
var ErrEmptyQuery = errors.New("policy: username is required")

// UserFinder locates the user a firstname search refers to.
type UserFinder interface {
	FindUserByFirstname(ctx context.Context, fragment string) (customer.User, error)
}

// ReportCache stores the aggregated report between policy writes.
type ReportCache interface {
	Get(ctx context.Context) ([]UserAggregate, bool, error)
	Set(ctx context.Context, report []UserAggregate) error
	Invalidate(ctx context.Context) error
}

// Service answers policy search and aggregation requests.
type Service struct {
	users  UserFinder
	repo   Repository
	cache  ReportCache
	logger *zap.Logger
}

// NewService builds a policy service without a report cache.
func NewService(users UserFinder, repo Repository, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		repo:   repo,
		logger: logger.Named("policy-service"),
	}
}

// WithReportCache enables caching of the aggregated report.
func (s *Service) WithReportCache(cache ReportCache) *Service {
	s.cache = cache
	return s
}

// SearchByFirstname finds the first user whose firstname contains username
// (case-insensitive) and returns their policies. A miss is not an error.
func (s *Service) SearchByFirstname(ctx context.Context, username string) (SearchResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return SearchResult{}, ErrEmptyQuery
	}

	user, err := s.users.FindUserByFirstname(ctx, username)
	if err != nil {
		if errors.Is(err, customer.ErrUserNotFound) {
			return SearchResult{Found: false, Policies: []Detail{}}, nil
		}
		return SearchResult{}, fmt.Errorf("policy: search user: %w", err)
	}

	policies, err := s.repo.ListByUser(ctx, user.ID)
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		Found: true,
		User: &Holder{
			ID:        user.ID,
			Firstname: user.Firstname,
			Email:     user.Email,
			Phone:     user.Phone,
		},
		Policies: policies,
		Count:    len(policies),
	}, nil
}

// Aggregated returns per-user policy totals ordered by total premium,
// highest first. Cache faults are logged and fall through to the store.
func (s *Service) Aggregated(ctx context.Context) ([]UserAggregate, error) {
	if s.cache != nil {
		report, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("report cache read failed", zap.Error(err))
		} else if ok {
			return report, nil
		}
	}

	rows, err := s.repo.ListForAggregation(ctx)
	if err != nil {
		return nil, err
	}
	report := Aggregate(rows)

	if s.cache != nil {
		if err := s.cache.Set(ctx, report); err != nil {
			s.logger.Warn("report cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

// InvalidateReport drops the cached aggregated report, if any.
func (s *Service) InvalidateReport(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}
