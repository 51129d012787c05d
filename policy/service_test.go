package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/customer"
)

func TestSearchByFirstname_Miss(t *testing.T) {
	svc := NewService(&fakeUsers{}, newFakeRepository(), zap.NewNop())

	result, err := svc.SearchByFirstname(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Nil(t, result.User)
	assert.NotNil(t, result.Policies)
	assert.Empty(t, result.Policies)
	assert.Equal(t, 0, result.Count)
}

func TestSearchByFirstname_Hit(t *testing.T) {
	users := &fakeUsers{users: []customer.User{
		{ID: "u1", Firstname: "Lura", Email: "lura@example.com", Phone: "555"},
	}}
	repo := newFakeRepository()
	repo.byUser["u1"] = []Detail{
		{PolicyNumber: "P-1", PremiumAmount: 120, CompanyName: "Acme"},
		{PolicyNumber: "P-2", PremiumAmount: 80},
	}
	svc := NewService(users, repo, zap.NewNop())

	result, err := svc.SearchByFirstname(context.Background(), "  LUR ")
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, "lura@example.com", result.User.Email)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "Acme", result.Policies[0].CompanyName)
}

func TestSearchByFirstname_EmptyQuery(t *testing.T) {
	svc := NewService(&fakeUsers{}, newFakeRepository(), zap.NewNop())

	_, err := svc.SearchByFirstname(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchByFirstname_StoreFailure(t *testing.T) {
	svc := NewService(&fakeUsers{err: errors.New("connection reset")}, newFakeRepository(), zap.NewNop())

	_, err := svc.SearchByFirstname(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy: search user")
}

func TestAggregated_UsesCache(t *testing.T) {
	repo := newFakeRepository()
	repo.rows = []HolderRow{row("a", "P1", 10), row("b", "P2", 20)}
	cache := &fakeCache{}
	svc := NewService(&fakeUsers{}, repo, zap.NewNop()).WithReportCache(cache)

	first, err := svc.Aggregated(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[0].UserID)
	assert.Equal(t, 1, repo.aggregationCalls)
	assert.True(t, cache.stored)

	second, err := svc.Aggregated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.aggregationCalls, "second call should be served from cache")

	require.NoError(t, svc.InvalidateReport(context.Background()))
	_, err = svc.Aggregated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.aggregationCalls)
}

func TestAggregated_CacheFailureFallsThrough(t *testing.T) {
	repo := newFakeRepository()
	repo.rows = []HolderRow{row("a", "P1", 10)}
	cache := &fakeCache{err: errors.New("redis down")}
	svc := NewService(&fakeUsers{}, repo, zap.NewNop()).WithReportCache(cache)

	report, err := svc.Aggregated(context.Background())
	require.NoError(t, err)
	assert.Len(t, report, 1)
}

type fakeUsers struct {
	users []customer.User
	err   error
}

func (f *fakeUsers) FindUserByFirstname(ctx context.Context, fragment string) (customer.User, error) {
	if f.err != nil {
		return customer.User{}, f.err
	}
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Firstname), strings.ToLower(fragment)) {
			return u, nil
		}
	}
	return customer.User{}, customer.ErrUserNotFound
}

type fakeRepository struct {
	numbers          map[string]Policy
	byUser           map[string][]Detail
	rows             []HolderRow
	aggregationCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		numbers: make(map[string]Policy),
		byUser:  make(map[string][]Detail),
	}
}

func (f *fakeRepository) Exists(ctx context.Context, policyNumber string) (bool, error) {
	_, ok := f.numbers[policyNumber]
	return ok, nil
}

func (f *fakeRepository) Create(ctx context.Context, params CreateParams) (Policy, error) {
	if _, ok := f.numbers[params.PolicyNumber]; ok {
		return Policy{}, ErrDuplicateNumber
	}
	p := Policy{ID: params.ID, PolicyNumber: params.PolicyNumber, UserID: params.UserID}
	f.numbers[params.PolicyNumber] = p
	return p, nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID string) ([]Detail, error) {
	if d, ok := f.byUser[userID]; ok {
		return d, nil
	}
	return []Detail{}, nil
}

func (f *fakeRepository) ListForAggregation(ctx context.Context) ([]HolderRow, error) {
	f.aggregationCalls++
	return f.rows, nil
}

type fakeCache struct {
	report []UserAggregate
	stored bool
	err    error
}

func (f *fakeCache) Get(ctx context.Context) ([]UserAggregate, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.report, f.stored, nil
}

func (f *fakeCache) Set(ctx context.Context, report []UserAggregate) error {
	if f.err != nil {
		return f.err
	}
	f.report = report
	f.stored = true
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context) error {
	f.report = nil
	f.stored = false
	return f.err
}
