package customer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/apperrors"
	"github.com/pramodsurya033/Insuredmine/db"
)

func TestPGRepositoryFindUserByFirstname(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(dsn, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	repo := NewRepository(pool)
	suffix := time.Now().UnixNano()
	token := fmt.Sprintf("QZ%d", suffix)

	first, err := repo.CreateUser(ctx, CreateUserParams{
		ID:        uuid.NewString(),
		Firstname: "Ma" + token + "rie",
		Email:     fmt.Sprintf("first-%d@example.com", suffix),
	})
	if err != nil {
		t.Fatalf("create first user: %v", err)
	}
	if _, err := repo.CreateUser(ctx, CreateUserParams{
		ID:        uuid.NewString(),
		Firstname: "Jo" + token,
		Email:     fmt.Sprintf("second-%d@example.com", suffix),
	}); err != nil {
		t.Fatalf("create second user: %v", err)
	}

	// Substring, any case, oldest wins.
	got, err := repo.FindUserByFirstname(ctx, strings.ToLower(token))
	if err != nil {
		t.Fatalf("find by fragment: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected oldest match %s, got %s (%s)", first.ID, got.ID, got.Firstname)
	}

	// An underscore is literal, so it must not stand in for the "r" in "Ma...rie".
	if _, err := repo.FindUserByFirstname(ctx, token+"_ie"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for literal underscore, got %v", err)
	}
}
