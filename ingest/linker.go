package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/apperrors"
	"github.com/pramodsurya033/Insuredmine/customer"
	"github.com/pramodsurya033/Insuredmine/policy"
)

// AccountStore checks and creates user accounts.
type AccountStore interface {
	AccountExists(ctx context.Context, accountName string) (bool, error)
	CreateAccount(ctx context.Context, params customer.CreateAccountParams) (customer.Account, error)
}

// PolicyStore checks and creates policies.
type PolicyStore interface {
	Exists(ctx context.Context, policyNumber string) (bool, error)
	Create(ctx context.Context, params policy.CreateParams) (policy.Policy, error)
}

// LinkResult counts what the link stage persisted or found.
type LinkResult struct {
	// Accounts is the number of distinct account names present after the
	// stage, whether found or created.
	Accounts        int
	PoliciesCreated int
}

// Linker creates the child entities of a batch once its parents resolved.
type Linker struct {
	accounts    AccountStore
	policies    PolicyStore
	validate    *validator.Validate
	idGenerator func() string
	logger      *zap.Logger
}

// NewLinker wires a linker over the given stores.
func NewLinker(accounts AccountStore, policies PolicyStore, logger *zap.Logger) *Linker {
	return &Linker{
		accounts:    accounts,
		policies:    policies,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		idGenerator: uuid.NewString,
		logger:      logger.Named("linker"),
	}
}

// WithIDGenerator overrides the id generator (useful for tests).
func (l *Linker) WithIDGenerator(fn func() string) *Linker {
	if fn != nil {
		l.idGenerator = fn
	}
	return l
}

// Link creates accounts, then policies. Per-row faults are logged and the row
// skipped. Only cancellation of ctx is returned as an error.
func (l *Linker) Link(ctx context.Context, rows []Row, res Resolution) (LinkResult, error) {
	var out LinkResult

	accounts, err := l.linkAccounts(ctx, rows, res)
	if err != nil {
		return LinkResult{}, err
	}
	out.Accounts = accounts

	created, err := l.linkPolicies(ctx, rows, res)
	if err != nil {
		return LinkResult{}, err
	}
	out.PoliciesCreated = created

	return out, nil
}

func (l *Linker) linkAccounts(ctx context.Context, rows []Row, res Resolution) (int, error) {
	types := make(map[string]string)
	names := uniqueKeys(rows, func(row Row) string {
		if l.validate.Struct(row.Account) != nil {
			return ""
		}
		if _, ok := types[row.Account.Name]; !ok {
			types[row.Account.Name] = row.Account.Type
		}
		return row.Account.Name
	})

	present := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("ingest: link accounts: %w", err)
		}

		exists, err := l.accounts.AccountExists(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, fmt.Errorf("ingest: link accounts: %w", ctxErr)
			}
			l.logger.Warn("account lookup failed", zap.String("account", name), zap.Error(err))
			continue
		}
		if exists {
			present++
			continue
		}
		if res.FirstUserID == "" {
			l.logger.Debug("no resolved user to own account", zap.String("account", name))
			continue
		}

		_, err = l.accounts.CreateAccount(ctx, customer.CreateAccountParams{
			ID:          l.idGenerator(),
			AccountName: name,
			AccountType: types[name],
			UserID:      res.FirstUserID,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, fmt.Errorf("ingest: link accounts: %w", ctxErr)
			}
			l.logger.Warn("account create failed", zap.String("account", name), zap.Error(err))
			continue
		}
		present++
	}
	return present, nil
}

func (l *Linker) linkPolicies(ctx context.Context, rows []Row, res Resolution) (int, error) {
	created := 0

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("ingest: link policies: %w", err)
		}
		if l.validate.Struct(row.Policy) != nil {
			continue
		}

		userID, ok := res.Users[row.User.Email]
		if !ok {
			l.logger.Debug("policy skipped, user unresolved",
				zap.Int("row", i+1),
				zap.String("policy_number", row.Policy.Number))
			continue
		}

		exists, err := l.policies.Exists(ctx, row.Policy.Number)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, fmt.Errorf("ingest: link policies: %w", ctxErr)
			}
			l.logger.Warn("policy lookup failed", zap.String("policy_number", row.Policy.Number), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		_, err = l.policies.Create(ctx, policy.CreateParams{
			ID:            l.idGenerator(),
			PolicyNumber:  row.Policy.Number,
			StartDate:     row.Policy.StartDate,
			EndDate:       row.Policy.EndDate,
			PremiumAmount: row.Policy.Premium,
			PolicyType:    row.Policy.Type,
			UserID:        userID,
			CarrierID:     lookup(res.Carriers, row.Carrier),
			LOBID:         lookup(res.LOBs, row.LOB),
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, apperrors.ErrConflict):
			l.logger.Debug("policy already exists", zap.String("policy_number", row.Policy.Number))
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, fmt.Errorf("ingest: link policies: %w", ctxErr)
			}
			l.logger.Warn("policy create failed", zap.String("policy_number", row.Policy.Number), zap.Error(err))
		}
	}
	return created, nil
}

func lookup(ids map[string]string, key string) *string {
	if key == "" {
		return nil
	}
	id, ok := ids[key]
	if !ok {
		return nil
	}
	return &id
}
