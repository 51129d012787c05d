package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_NormalisesRecords(t *testing.T) {
	content := "\ufeffagent, email ,policy_number\n" +
		"  Alex , a@example.com ,P-1\n" +
		"\n" +
		" , , \n" +
		"Blake,b@example.com,P-2\n"
	path := writeFile(t, "batch.csv", content)

	records, err := NewParser(',', 2, zap.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{"agent": "Alex", "email": "a@example.com", "policy_number": "P-1"}, records[0])
	assert.Equal(t, "Blake", records[1]["agent"])
}

func TestParse_ByteOrderMarkBeforeQuotedHeader(t *testing.T) {
	content := "\ufeff\"agent\",\"email\",\"policy_number\"\n" +
		"\"Alex\",\"a@example.com\",\"P-1\"\n"
	path := writeFile(t, "export.csv", content)

	records, err := NewParser(',', 1, zap.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Record{"agent": "Alex", "email": "a@example.com", "policy_number": "P-1"}, records[0])
}

func TestParse_FieldCountMismatchFailsWholeFile(t *testing.T) {
	path := writeFile(t, "bad.csv", "agent,email\nAlex,a@example.com\nBlake\n")

	records, err := NewParser(',', 1, zap.NewNop()).Parse(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParse_TSVUsesTab(t *testing.T) {
	path := writeFile(t, "batch.tsv", "agent\temail\nAlex\ta@example.com\n")

	records, err := NewParser(',', 1, zap.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a@example.com", records[0]["email"])
}

func TestParse_CustomDelimiter(t *testing.T) {
	path := writeFile(t, "batch.csv", "agent;email\nAlex;a@example.com\n")

	records, err := NewParser(';', 1, zap.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alex", records[0]["agent"])
}

func TestParse_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	records, err := NewParser(',', 1, zap.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := NewParser(',', 1, zap.NewNop()).Parse(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParse_RecoversWorkerPanic(t *testing.T) {
	p := NewParser(',', 1, zap.NewNop())
	p.open = func(string) (io.ReadCloser, error) {
		panic("reader exploded")
	}

	records, err := p.Parse(context.Background(), "boom.csv")
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "reader exploded")

	// The worker slot is released after a panic.
	p.open = func(string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("agent\nAlex\n")), nil
	}
	records, err = p.Parse(context.Background(), "ok.csv")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestParse_HonoursContextWhileWaitingForWorker(t *testing.T) {
	release := make(chan struct{})
	p := NewParser(',', 1, zap.NewNop())
	p.open = func(string) (io.ReadCloser, error) {
		<-release
		return io.NopCloser(strings.NewReader("agent\nAlex\n")), nil
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := p.Parse(context.Background(), "slow.csv")
		firstDone <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Parse(ctx, "queued.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-firstDone)
}
