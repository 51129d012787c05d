package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLink_AccountsOwnedByFirstResolvedUser(t *testing.T) {
	store := newMemStore()
	l := NewLinker(store, policyStore{store}, zap.NewNop())

	rows := []Row{
		testRow("", "", "", "x@example.com", "", "Household", ""),
		testRow("", "", "", "y@example.com", "", "Business", ""),
		testRow("", "", "", "y@example.com", "", "Household", ""),
	}
	res := Resolution{Users: map[string]string{"x@example.com": "u-x", "y@example.com": "u-y"}, FirstUserID: "u-x"}

	out, err := l.Link(context.Background(), rows, res)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Accounts)
	require.Len(t, store.accounts, 2)
	for _, a := range store.accounts {
		assert.Equal(t, "u-x", a.UserID)
	}

	// A second run finds the accounts and creates none.
	out, err = l.Link(context.Background(), rows, res)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Accounts)
	assert.Len(t, store.accounts, 2)
}

func TestLink_NoAccountsWithoutResolvedUser(t *testing.T) {
	store := newMemStore()
	l := NewLinker(store, policyStore{store}, zap.NewNop())

	out, err := l.Link(context.Background(), []Row{testRow("", "", "", "", "", "Household", "")}, Resolution{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Accounts)
	assert.Empty(t, store.accounts)
}

func TestLink_PolicyRules(t *testing.T) {
	store := newMemStore()
	store.failCreate["P-FAIL"] = errors.New("deadlock detected")
	store.raceCreate["P-RACE"] = true
	l := NewLinker(store, policyStore{store}, zap.NewNop())

	rows := []Row{
		testRow("", "Auto", "Acme", "x@example.com", "", "", "P-1"),
		testRow("", "", "", "x@example.com", "", "", ""),
		testRow("", "", "", "ghost@example.com", "", "", "P-2"),
		testRow("", "Auto", "Unknown", "x@example.com", "", "", "P-3"),
		testRow("", "", "", "x@example.com", "", "", "P-1"),
		testRow("", "", "", "x@example.com", "", "", "P-FAIL"),
		testRow("", "", "", "x@example.com", "", "", "P-RACE"),
		testRow("", "", "", "x@example.com", "", "", "P-4"),
	}
	res := Resolution{
		Users:    map[string]string{"x@example.com": "u-x"},
		Carriers: map[string]string{"Acme": "c-acme"},
		LOBs:     map[string]string{"Auto": "l-auto"},
	}

	out, err := l.Link(context.Background(), rows, res)
	require.NoError(t, err)
	assert.Equal(t, 3, out.PoliciesCreated)
	assert.LessOrEqual(t, out.PoliciesCreated, len(rows))

	require.Contains(t, store.policies, "P-1")
	p1 := store.policies["P-1"]
	require.NotNil(t, p1.CarrierID)
	assert.Equal(t, "c-acme", *p1.CarrierID)
	assert.Equal(t, "l-auto", *p1.LOBID)

	p3 := store.policies["P-3"]
	assert.Nil(t, p3.CarrierID, "unresolved carrier is stored as null")
	require.NotNil(t, p3.LOBID)

	assert.NotContains(t, store.policies, "P-2", "unresolved user yields no policy")
	assert.Contains(t, store.policies, "P-4", "faults on one row do not stop later rows")
}

func TestLink_CancelledContextIsFatal(t *testing.T) {
	store := newMemStore()
	l := NewLinker(store, policyStore{store}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Link(ctx, []Row{testRow("", "", "", "x@example.com", "", "A", "P-1")}, Resolution{FirstUserID: "u"})
	assert.ErrorIs(t, err, context.Canceled)
}
