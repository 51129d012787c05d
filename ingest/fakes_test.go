package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pramodsurya033/Insuredmine/customer"
	"github.com/pramodsurya033/Insuredmine/policy"
	"github.com/pramodsurya033/Insuredmine/reference"
)

// memStore is an in-memory stand-in for every store the pipeline touches.
type memStore struct {
	mu sync.Mutex

	refs     map[reference.Kind]map[string]string
	users    map[string]customer.User
	accounts []customer.Account
	policies map[string]policy.Policy

	// failCreate makes Create fail for the named key with the given error.
	failCreate map[string]error
	// raceCreate makes Create report a conflict for the named key, as if a
	// concurrent writer won.
	raceCreate map[string]bool

	calls []string
	seq   int
}

func newMemStore() *memStore {
	return &memStore{
		refs:       make(map[reference.Kind]map[string]string),
		users:      make(map[string]customer.User),
		policies:   make(map[string]policy.Policy),
		failCreate: make(map[string]error),
		raceCreate: make(map[string]bool),
	}
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

func (m *memStore) FindByName(ctx context.Context, kind reference.Kind, name string) (reference.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "find:"+string(kind)+":"+name)

	if id, ok := m.refs[kind][name]; ok {
		return reference.Entity{ID: id, Kind: kind, Name: name}, nil
	}
	return reference.Entity{}, reference.ErrNotFound
}

func (m *memStore) Create(ctx context.Context, kind reference.Kind, id, name string) (reference.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create:"+string(kind)+":"+name)

	if err, ok := m.failCreate[name]; ok {
		return reference.Entity{}, err
	}
	if m.raceCreate[name] {
		return reference.Entity{}, reference.ErrDuplicate
	}
	if _, ok := m.refs[kind][name]; ok {
		return reference.Entity{}, reference.ErrDuplicate
	}
	if m.refs[kind] == nil {
		m.refs[kind] = make(map[string]string)
	}
	m.refs[kind][name] = id
	return reference.Entity{ID: id, Kind: kind, Name: name}, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (customer.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return customer.User{}, customer.ErrUserNotFound
}

func (m *memStore) CreateUser(ctx context.Context, params customer.CreateUserParams) (customer.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create:user:"+params.Email)

	if err, ok := m.failCreate[params.Email]; ok {
		return customer.User{}, err
	}
	if m.raceCreate[params.Email] {
		return customer.User{}, customer.ErrDuplicateEmail
	}
	if _, ok := m.users[params.Email]; ok {
		return customer.User{}, customer.ErrDuplicateEmail
	}
	u := customer.User{
		ID:        params.ID,
		Firstname: params.Firstname,
		Email:     params.Email,
		Phone:     params.Phone,
		UserType:  params.UserType,
	}
	m.users[params.Email] = u
	return u, nil
}

func (m *memStore) AccountExists(ctx context.Context, accountName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.AccountName == accountName {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateAccount(ctx context.Context, params customer.CreateAccountParams) (customer.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := customer.Account{
		ID:          params.ID,
		AccountName: params.AccountName,
		AccountType: params.AccountType,
		UserID:      params.UserID,
	}
	m.accounts = append(m.accounts, a)
	return a, nil
}

func (m *memStore) Exists(ctx context.Context, policyNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.policies[policyNumber]
	return ok, nil
}

func (m *memStore) CreatePolicy(ctx context.Context, params policy.CreateParams) (policy.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failCreate[params.PolicyNumber]; ok {
		return policy.Policy{}, err
	}
	if m.raceCreate[params.PolicyNumber] {
		return policy.Policy{}, policy.ErrDuplicateNumber
	}
	if _, ok := m.policies[params.PolicyNumber]; ok {
		return policy.Policy{}, policy.ErrDuplicateNumber
	}
	p := policy.Policy{
		ID:            params.ID,
		PolicyNumber:  params.PolicyNumber,
		PremiumAmount: params.PremiumAmount,
		UserID:        params.UserID,
		CarrierID:     params.CarrierID,
		LOBID:         params.LOBID,
	}
	m.policies[params.PolicyNumber] = p
	return p, nil
}

// policyStore adapts memStore to PolicyStore; Create is taken by references.
type policyStore struct{ *memStore }

func (p policyStore) Create(ctx context.Context, params policy.CreateParams) (policy.Policy, error) {
	return p.CreatePolicy(ctx, params)
}

func (m *memStore) count(kind reference.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs[kind])
}
