package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramodsurya033/Insuredmine/apperrors"
	"github.com/pramodsurya033/Insuredmine/db"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = fmt.Errorf("customer: user: %w", apperrors.ErrNotFound)
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = fmt.Errorf("customer: email already exists: %w", apperrors.ErrConflict)
	// ErrUnknownUser signals an account referencing a missing user.
	ErrUnknownUser = fmt.Errorf("customer: account owner: %w", apperrors.ErrNotFound)
)

// Repository handles data access for users and accounts.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	FindUserByFirstname(ctx context.Context, fragment string) (User, error)
	AccountExists(ctx context.Context, accountName string) (bool, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed customer repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, firstname, email, dob, address, phone, state, zip, gender, user_type, created_at`

// GetUserByEmail retrieves a user by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("customer: get user by email: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new user.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	const query = `
		INSERT INTO users (id, firstname, email, dob, address, phone, state, zip, gender, user_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query,
		params.ID,
		params.Firstname,
		params.Email,
		params.DOB,
		params.Address,
		params.Phone,
		params.State,
		params.Zip,
		params.Gender,
		params.UserType,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("customer: create user: %w", err)
	}
	return user, nil
}

// FindUserByFirstname returns the oldest user whose firstname contains
// fragment, ignoring case. Wildcards in fragment match literally.
func (r *PGRepository) FindUserByFirstname(ctx context.Context, fragment string) (User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE firstname ILIKE $1 ESCAPE '\'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, "%"+escapeLike(fragment)+"%"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("customer: find user by firstname: %w", err)
	}
	return user, nil
}

// AccountExists reports whether any account carries accountName.
func (r *PGRepository) AccountExists(ctx context.Context, accountName string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM user_accounts WHERE account_name = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, accountName).Scan(&exists); err != nil {
		return false, fmt.Errorf("customer: account exists: %w", err)
	}
	return exists, nil
}

// CreateAccount inserts a new account owned by params.UserID.
func (r *PGRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	const query = `
		INSERT INTO user_accounts (id, account_name, account_type, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_name, account_type, user_id, created_at
	`

	var account Account
	err := r.pool.QueryRow(ctx, query, params.ID, params.AccountName, params.AccountType, params.UserID).Scan(
		&account.ID,
		&account.AccountName,
		&account.AccountType,
		&account.UserID,
		&account.CreatedAt,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Account{}, ErrUnknownUser
		}
		return Account{}, fmt.Errorf("customer: create account: %w", err)
	}
	return account, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Firstname,
		&user.Email,
		&user.DOB,
		&user.Address,
		&user.Phone,
		&user.State,
		&user.Zip,
		&user.Gender,
		&user.UserType,
		&user.CreatedAt,
	)
	return user, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
