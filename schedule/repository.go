package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramodsurya033/Insuredmine/apperrors"
)

var (
	// ErrNotFound signals that the message does not exist.
	ErrNotFound = fmt.Errorf("schedule: message: %w", apperrors.ErrNotFound)
	// ErrAlreadySent signals that another sweep marked the message first.
	ErrAlreadySent = fmt.Errorf("schedule: message already sent: %w", apperrors.ErrConflict)
)

// Repository handles data access for scheduled messages.
type Repository interface {
	Create(ctx context.Context, msg Message) (Message, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	ListRecent(ctx context.Context, limit int) ([]Message, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed message repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const messageColumns = `id, message, scheduled_day, scheduled_time, scheduled_date, is_sent, sent_at, created_at`

// Create inserts a pending message.
func (r *PGRepository) Create(ctx context.Context, msg Message) (Message, error) {
	const query = `
		INSERT INTO scheduled_messages (id, message, scheduled_day, scheduled_time, scheduled_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + messageColumns

	created, err := scanMessage(r.pool.QueryRow(ctx, query,
		msg.ID,
		msg.Message,
		msg.ScheduledDay,
		msg.ScheduledTime,
		msg.ScheduledDate,
		msg.CreatedAt,
	))
	if err != nil {
		return Message{}, fmt.Errorf("schedule: create: %w", err)
	}
	return created, nil
}

// ListDue returns up to limit pending messages scheduled at or before now,
// earliest first.
func (r *PGRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	const query = `
		SELECT ` + messageColumns + `
		FROM scheduled_messages
		WHERE NOT is_sent AND scheduled_date <= $1
		ORDER BY scheduled_date ASC, id ASC
		LIMIT $2
	`
	return r.list(ctx, "list due", query, now, limit)
}

// MarkSent flips a pending message to sent. It returns ErrAlreadySent when the
// message was already sent and ErrNotFound when it does not exist.
func (r *PGRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE scheduled_messages
		SET is_sent = true, sent_at = $2
		WHERE id = $1 AND NOT is_sent
	`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("schedule: mark sent: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var sent bool
	err = r.pool.QueryRow(ctx, `SELECT is_sent FROM scheduled_messages WHERE id = $1`, id).Scan(&sent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("schedule: check sent: %w", err)
	}
	return ErrAlreadySent
}

// ListRecent returns up to limit messages, newest first.
func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT ` + messageColumns + `
		FROM scheduled_messages
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	return r.list(ctx, "list recent", query, limit)
}

func (r *PGRepository) list(ctx context.Context, op, query string, args ...any) ([]Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schedule: %s: %w", op, err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("schedule: scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: iterate messages: %w", err)
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.ID,
		&msg.Message,
		&msg.ScheduledDay,
		&msg.ScheduledTime,
		&msg.ScheduledDate,
		&msg.IsSent,
		&msg.SentAt,
		&msg.CreatedAt,
	)
	return msg, err
}
