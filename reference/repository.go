package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramodsurya033/Insuredmine/apperrors"
	"github.com/pramodsurya033/Insuredmine/db"
)

var (
	// ErrNotFound signals that no entity carries the requested name.
	ErrNotFound = fmt.Errorf("reference: %w", apperrors.ErrNotFound)
	// ErrDuplicate signals that the name is already taken.
	ErrDuplicate = fmt.Errorf("reference: name already exists: %w", apperrors.ErrConflict)
)

// Repository finds and creates name-keyed entities.
type Repository interface {
	FindByName(ctx context.Context, kind Kind, name string) (Entity, error)
	Create(ctx context.Context, kind Kind, id, name string) (Entity, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed reference repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByName returns the entity of kind whose natural key equals name.
func (r *PGRepository) FindByName(ctx context.Context, kind Kind, name string) (Entity, error) {
	t, err := kind.table()
	if err != nil {
		return Entity{}, err
	}

	// Table and column come from a closed set, never from input.
	query := fmt.Sprintf(`SELECT id, %[2]s, created_at FROM %[1]s WHERE %[2]s = $1`, t.name, t.column)

	entity := Entity{Kind: kind}
	err = r.pool.QueryRow(ctx, query, name).Scan(&entity.ID, &entity.Name, &entity.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, fmt.Errorf("reference: find %s: %w", kind, err)
	}
	return entity, nil
}

// Create inserts a new entity. A taken name yields ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, kind Kind, id, name string) (Entity, error) {
	t, err := kind.table()
	if err != nil {
		return Entity{}, err
	}

	query := fmt.Sprintf(`INSERT INTO %[1]s (id, %[2]s) VALUES ($1, $2) RETURNING id, %[2]s, created_at`, t.name, t.column)

	entity := Entity{Kind: kind}
	err = r.pool.QueryRow(ctx, query, id, name).Scan(&entity.ID, &entity.Name, &entity.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Entity{}, ErrDuplicate
		}
		return Entity{}, fmt.Errorf("reference: create %s: %w", kind, err)
	}
	return entity, nil
}

// Count returns the number of persisted entities of kind.
func (r *PGRepository) Count(ctx context.Context, kind Kind) (int, error) {
	t, err := kind.table()
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("reference: count %s: %w", kind, err)
	}
	return n, nil
}
