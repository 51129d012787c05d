// Package ingest turns uploaded delimited files into the policy entity graph:
// parse, dedupe, resolve parents, then link accounts and policies.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrFormat signals a malformed file. The whole parse fails.
var ErrFormat = errors.New("ingest: malformed file")

// Record is one parsed data row keyed by header name.
type Record map[string]string

type parseResult struct {
	records []Record
	err     error
}

// Parser reads delimited files on bounded worker goroutines.
type Parser struct {
	delimiter rune
	workers   *semaphore.Weighted
	open      func(path string) (io.ReadCloser, error)
	logger    *zap.Logger
}

// NewParser builds a parser using delimiter for every file except .tsv files,
// which always use tab. At most maxWorkers files are parsed at once.
func NewParser(delimiter rune, maxWorkers int64, logger *zap.Logger) *Parser {
	if delimiter == 0 {
		delimiter = ','
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Parser{
		delimiter: delimiter,
		workers:   semaphore.NewWeighted(maxWorkers),
		open:      func(path string) (io.ReadCloser, error) { return os.Open(path) },
		logger:    logger.Named("parser"),
	}
}

// Parse reads the whole file at path and returns every record, or an error.
// It never returns a partial batch. The read runs on its own goroutine and
// Parse returns early if ctx is cancelled while waiting.
func (p *Parser) Parse(ctx context.Context, path string) ([]Record, error) {
	if err := p.workers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("ingest: wait for parse worker: %w", err)
	}

	results := make(chan parseResult, 1)
	go func() {
		defer p.workers.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("parse worker panicked", zap.String("path", path), zap.Any("panic", r))
				results <- parseResult{err: fmt.Errorf("ingest: parse worker failed: %v", r)}
			}
		}()

		records, err := p.parseFile(ctx, path)
		results <- parseResult{records: records, err: err}
	}()

	select {
	case res := <-results:
		return res.records, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("ingest: parse %s: %w", filepath.Base(path), ctx.Err())
	}
}

func (p *Parser) parseFile(ctx context.Context, path string) ([]Record, error) {
	f, err := p.open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	delimiter := p.delimiter
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		delimiter = '\t'
	}

	records, err := readRecords(ctx, f, delimiter)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("parsed file", zap.String("path", path), zap.Int("records", len(records)))
	return records, nil
}

// readRecords parses r with the first row as header. A leading byte order
// mark is dropped before tokenising. Values are trimmed and rows whose every
// field is blank are skipped.
func readRecords(ctx context.Context, r io.Reader, delimiter rune) ([]Record, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	records := make([]Record, 0)
	for {
		if len(records)%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if blank(fields) {
			continue
		}

		if len(fields) != len(columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: expected %d fields, got %d", ErrFormat, line, len(columns), len(fields))
		}

		rec := make(Record, len(columns))
		for i, name := range columns {
			if name == "" {
				continue
			}
			rec[name] = strings.TrimSpace(fields[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
