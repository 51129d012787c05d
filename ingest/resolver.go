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
	"github.com/pramodsurya033/Insuredmine/reference"
)

// ReferenceStore finds and creates agents, carriers and lines of business.
type ReferenceStore interface {
	FindByName(ctx context.Context, kind reference.Kind, name string) (reference.Entity, error)
	Create(ctx context.Context, kind reference.Kind, id, name string) (reference.Entity, error)
}

// UserStore finds and creates users by email.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (customer.User, error)
	CreateUser(ctx context.Context, params customer.CreateUserParams) (customer.User, error)
}

// Resolution maps every natural key resolved in a batch to its entity id.
// Keys that could not be resolved are absent.
type Resolution struct {
	Agents   map[string]string
	LOBs     map[string]string
	Carriers map[string]string
	Users    map[string]string

	// FirstUserID is the id of the first user, in batch order, that resolved.
	// Accounts created by the batch are owned by it.
	FirstUserID string
}

// Resolver resolves parent entities to ids, creating the missing ones.
type Resolver struct {
	refs        ReferenceStore
	users       UserStore
	validate    *validator.Validate
	idGenerator func() string
	logger      *zap.Logger
}

// NewResolver wires a resolver over the given stores.
func NewResolver(refs ReferenceStore, users UserStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		refs:        refs,
		users:       users,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		idGenerator: uuid.NewString,
		logger:      logger.Named("resolver"),
	}
}

// WithIDGenerator overrides the id generator (useful for tests).
func (r *Resolver) WithIDGenerator(fn func() string) *Resolver {
	if fn != nil {
		r.idGenerator = fn
	}
	return r
}

// Resolve resolves agents, lines of business, carriers and users in that
// order, each kind finishing before the next starts. Store faults on single
// keys are logged and the key is left unresolved. Only cancellation of ctx
// is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, rows []Row) (Resolution, error) {
	res := Resolution{}

	steps := []struct {
		kind reference.Kind
		key  func(Row) string
		dst  *map[string]string
	}{
		{reference.KindAgent, func(row Row) string { return row.Agent }, &res.Agents},
		{reference.KindLOB, func(row Row) string { return row.LOB }, &res.LOBs},
		{reference.KindCarrier, func(row Row) string { return row.Carrier }, &res.Carriers},
	}

	for _, step := range steps {
		ids, err := r.resolveReferences(ctx, step.kind, uniqueKeys(rows, step.key))
		if err != nil {
			return Resolution{}, err
		}
		*step.dst = ids
	}

	users, first, err := r.resolveUsers(ctx, rows)
	if err != nil {
		return Resolution{}, err
	}
	res.Users = users
	res.FirstUserID = first

	return res, nil
}

func (r *Resolver) resolveReferences(ctx context.Context, kind reference.Kind, names []string) (map[string]string, error) {
	ids := make(map[string]string, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest: resolve %s: %w", kind, err)
		}

		entity, err := r.refs.FindByName(ctx, kind, name)
		if err == nil {
			ids[name] = entity.ID
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("ingest: resolve %s: %w", kind, ctxErr)
			}
			r.logger.Warn("lookup failed", zap.String("kind", string(kind)), zap.String("name", name), zap.Error(err))
			continue
		}

		entity, err = r.refs.Create(ctx, kind, r.idGenerator(), name)
		switch {
		case err == nil:
			ids[name] = entity.ID
		case errors.Is(err, apperrors.ErrConflict):
			r.logger.Debug("already exists", zap.String("kind", string(kind)), zap.String("name", name))
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("ingest: resolve %s: %w", kind, ctxErr)
			}
			r.logger.Warn("create failed", zap.String("kind", string(kind)), zap.String("name", name), zap.Error(err))
		}
	}
	return ids, nil
}

func (r *Resolver) resolveUsers(ctx context.Context, rows []Row) (map[string]string, string, error) {
	// First row carrying an email supplies the user's attributes.
	order := make([]string, 0)
	attrs := make(map[string]UserFields)
	for _, row := range rows {
		if err := r.validate.Struct(row.User); err != nil {
			continue
		}
		if _, seen := attrs[row.User.Email]; seen {
			continue
		}
		attrs[row.User.Email] = row.User
		order = append(order, row.User.Email)
	}

	ids := make(map[string]string, len(order))
	first := ""

	for _, email := range order {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("ingest: resolve users: %w", err)
		}

		id, ok, err := r.resolveUser(ctx, attrs[email])
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		ids[email] = id
		if first == "" {
			first = id
		}
	}
	return ids, first, nil
}

func (r *Resolver) resolveUser(ctx context.Context, u UserFields) (string, bool, error) {
	user, err := r.users.GetUserByEmail(ctx, u.Email)
	if err == nil {
		return user.ID, true, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, fmt.Errorf("ingest: resolve users: %w", ctxErr)
		}
		r.logger.Warn("user lookup failed", zap.String("email", u.Email), zap.Error(err))
		return "", false, nil
	}

	user, err = r.users.CreateUser(ctx, customer.CreateUserParams{
		ID:        r.idGenerator(),
		Firstname: u.Firstname,
		Email:     u.Email,
		DOB:       u.DOB,
		Address:   u.Address,
		Phone:     u.Phone,
		State:     u.State,
		Zip:       u.Zip,
		Gender:    u.Gender,
		UserType:  u.UserType,
	})
	switch {
	case err == nil:
		return user.ID, true, nil
	case errors.Is(err, apperrors.ErrConflict):
		r.logger.Debug("user already exists", zap.String("email", u.Email))
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, fmt.Errorf("ingest: resolve users: %w", ctxErr)
		}
		r.logger.Warn("user create failed", zap.String("email", u.Email), zap.Error(err))
	}
	return "", false, nil
}

// uniqueKeys returns the distinct non-empty keys of rows in first-seen order.
func uniqueKeys(rows []Row, key func(Row) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, row := range rows {
		k := key(row)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
