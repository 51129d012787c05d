package policy

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
	// ErrDuplicateNumber signals that the policy number is already taken.
	ErrDuplicateNumber = fmt.Errorf("policy: number already exists: %w", apperrors.ErrConflict)
	// ErrUnknownReference signals a user, carrier or LOB id that does not exist.
	ErrUnknownReference = fmt.Errorf("policy: referenced entity: %w", apperrors.ErrNotFound)
)

// Repository handles data access for policies.
type Repository interface {
	Exists(ctx context.Context, policyNumber string) (bool, error)
	Create(ctx context.Context, params CreateParams) (Policy, error)
	ListByUser(ctx context.Context, userID string) ([]Detail, error)
	ListForAggregation(ctx context.Context) ([]HolderRow, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed policy repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Exists reports whether a policy with policyNumber is persisted.
func (r *PGRepository) Exists(ctx context.Context, policyNumber string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM policies WHERE policy_number = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, policyNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("policy: exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new policy.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Policy, error) {
	const query = `
		INSERT INTO policies (
			id, policy_number, policy_start_date, policy_end_date, premium_amount,
			policy_type, user_id, company_id, category_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, policy_number, policy_start_date, policy_end_date, premium_amount,
			policy_type, user_id, company_id, category_id, created_at
	`

	var p Policy
	err := r.pool.QueryRow(ctx, query,
		params.ID,
		params.PolicyNumber,
		params.StartDate,
		params.EndDate,
		params.PremiumAmount,
		params.PolicyType,
		params.UserID,
		params.CarrierID,
		params.LOBID,
	).Scan(
		&p.ID,
		&p.PolicyNumber,
		&p.StartDate,
		&p.EndDate,
		&p.PremiumAmount,
		&p.PolicyType,
		&p.UserID,
		&p.CarrierID,
		&p.LOBID,
		&p.CreatedAt,
	)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return Policy{}, ErrDuplicateNumber
		case db.IsForeignKeyViolation(err):
			return Policy{}, ErrUnknownReference
		}
		return Policy{}, fmt.Errorf("policy: create: %w", err)
	}
	return p, nil
}

// ListByUser returns the user's policies with carrier and LOB names.
func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Detail, error) {
	const query = `
		SELECT p.id, p.policy_number, p.policy_type, p.premium_amount,
			p.policy_start_date, p.policy_end_date,
			COALESCE(c.company_name, ''), COALESCE(l.category_name, '')
		FROM policies p
		LEFT JOIN carriers c ON c.id = p.company_id
		LEFT JOIN lobs l ON l.id = p.category_id
		WHERE p.user_id = $1
		ORDER BY p.created_at ASC, p.policy_number ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("policy: list by user: %w", err)
	}
	defer rows.Close()

	details := make([]Detail, 0)
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.PolicyNumber, &d.PolicyType, &d.PremiumAmount,
			&d.StartDate, &d.EndDate, &d.CompanyName, &d.CategoryName); err != nil {
			return nil, fmt.Errorf("policy: scan detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("policy: iterate details: %w", err)
	}
	return details, nil
}

// ListForAggregation returns every policy joined with its holder, grouped by
// user in first-created order.
func (r *PGRepository) ListForAggregation(ctx context.Context) ([]HolderRow, error) {
	const query = `
		SELECT u.id, u.firstname, u.email, u.phone,
			p.id, p.policy_number, p.policy_type, p.premium_amount,
			p.policy_start_date, p.policy_end_date,
			COALESCE(c.company_name, ''), COALESCE(l.category_name, '')
		FROM policies p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN carriers c ON c.id = p.company_id
		LEFT JOIN lobs l ON l.id = p.category_id
		ORDER BY u.created_at ASC, u.id ASC, p.created_at ASC, p.policy_number ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("policy: list for aggregation: %w", err)
	}
	defer rows.Close()

	out := make([]HolderRow, 0)
	for rows.Next() {
		var h HolderRow
		if err := rows.Scan(&h.UserID, &h.Firstname, &h.Email, &h.Phone,
			&h.Policy.ID, &h.Policy.PolicyNumber, &h.Policy.PolicyType, &h.Policy.PremiumAmount,
			&h.Policy.StartDate, &h.Policy.EndDate, &h.Policy.CompanyName, &h.Policy.CategoryName); err != nil {
			return nil, fmt.Errorf("policy: scan holder row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("policy: iterate holder rows: %w", err)
	}
	return out, nil
}

// Get returns a policy by number.
func (r *PGRepository) Get(ctx context.Context, policyNumber string) (Policy, error) {
	const query = `
		SELECT id, policy_number, policy_start_date, policy_end_date, premium_amount,
			policy_type, user_id, company_id, category_id, created_at
		FROM policies
		WHERE policy_number = $1
	`

	var p Policy
	err := r.pool.QueryRow(ctx, query, policyNumber).Scan(
		&p.ID, &p.PolicyNumber, &p.StartDate, &p.EndDate, &p.PremiumAmount,
		&p.PolicyType, &p.UserID, &p.CarrierID, &p.LOBID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, fmt.Errorf("policy: get %s: %w", policyNumber, apperrors.ErrNotFound)
		}
		return Policy{}, fmt.Errorf("policy: get: %w", err)
	}
	return p, nil
}
