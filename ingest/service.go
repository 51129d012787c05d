package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/metrics"
)

// Summary reports the outcome of one ingestion run. Entity counts are the
// number of distinct natural keys that resolved to an id.
type Summary struct {
	Agents          int `json:"agents"`
	Users           int `json:"users"`
	LOBs            int `json:"lobs"`
	Carriers        int `json:"carriers"`
	Accounts        int `json:"accounts"`
	PoliciesCreated int `json:"policiesCreated"`
	TotalRecords    int `json:"totalRecords"`
}

// ReportInvalidator drops derived reports after policies change.
type ReportInvalidator interface {
	InvalidateReport(ctx context.Context) error
}

// Service runs the parse, resolve and link stages in strict sequence.
type Service struct {
	parser      *Parser
	resolver    *Resolver
	linker      *Linker
	invalidator ReportInvalidator
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewService wires the ingestion pipeline.
func NewService(parser *Parser, resolver *Resolver, linker *Linker, logger *zap.Logger) *Service {
	return &Service{
		parser:   parser,
		resolver: resolver,
		linker:   linker,
		tracer:   otel.Tracer("github.com/pramodsurya033/Insuredmine/ingest"),
		logger:   logger.Named("ingest-service"),
	}
}

// WithReportInvalidator registers a report to drop when policies are created.
func (s *Service) WithReportInvalidator(inv ReportInvalidator) *Service {
	s.invalidator = inv
	return s
}

// IngestFile parses the file at path and ingests its records. It fails only
// when the file cannot be parsed or ctx is cancelled; nothing is rolled back.
func (s *Service) IngestFile(ctx context.Context, path string) (Summary, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.file", trace.WithAttributes(
		attribute.String("file", filepath.Base(path)),
	))
	defer span.End()

	records, err := s.parse(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		metrics.IngestRunsTotal.WithLabelValues("parse_failed").Inc()
		return Summary{}, err
	}

	return s.IngestRecords(ctx, records)
}

// IngestRecords resolves and links already parsed records.
func (s *Service) IngestRecords(ctx context.Context, records []Record) (Summary, error) {
	started := time.Now()
	rows := DecodeRows(records)
	metrics.IngestRecordsTotal.Add(float64(len(rows)))

	res, err := s.resolve(ctx, rows)
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("cancelled").Inc()
		return Summary{}, err
	}

	linked, err := s.link(ctx, rows, res)
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("cancelled").Inc()
		return Summary{}, err
	}

	summary := Summary{
		Agents:          len(res.Agents),
		Users:           len(res.Users),
		LOBs:            len(res.LOBs),
		Carriers:        len(res.Carriers),
		Accounts:        linked.Accounts,
		PoliciesCreated: linked.PoliciesCreated,
		TotalRecords:    len(rows),
	}

	if summary.PoliciesCreated > 0 && s.invalidator != nil {
		if err := s.invalidator.InvalidateReport(ctx); err != nil {
			s.logger.Warn("failed to invalidate aggregated report", zap.Error(err))
		}
	}

	metrics.IngestRunsTotal.WithLabelValues("ok").Inc()
	metrics.IngestPoliciesCreated.Add(float64(summary.PoliciesCreated))
	s.logger.Info("ingestion complete",
		zap.Int("records", summary.TotalRecords),
		zap.Int("agents", summary.Agents),
		zap.Int("users", summary.Users),
		zap.Int("lobs", summary.LOBs),
		zap.Int("carriers", summary.Carriers),
		zap.Int("accounts", summary.Accounts),
		zap.Int("policies_created", summary.PoliciesCreated),
		zap.Duration("elapsed", time.Since(started)))

	return summary, nil
}

func (s *Service) parse(ctx context.Context, path string) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.parse")
	defer span.End()
	defer observeStage("parse", time.Now())

	records, err := s.parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse: %w", err)
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

func (s *Service) resolve(ctx context.Context, rows []Row) (Resolution, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.resolve")
	defer span.End()
	defer observeStage("resolve", time.Now())

	res, err := s.resolver.Resolve(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve aborted")
		return Resolution{}, err
	}

	metrics.IngestEntitiesResolved.WithLabelValues("agent").Add(float64(len(res.Agents)))
	metrics.IngestEntitiesResolved.WithLabelValues("lob").Add(float64(len(res.LOBs)))
	metrics.IngestEntitiesResolved.WithLabelValues("carrier").Add(float64(len(res.Carriers)))
	metrics.IngestEntitiesResolved.WithLabelValues("user").Add(float64(len(res.Users)))
	return res, nil
}

func (s *Service) link(ctx context.Context, rows []Row, res Resolution) (LinkResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.link")
	defer span.End()
	defer observeStage("link", time.Now())

	out, err := s.linker.Link(ctx, rows, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "link aborted")
		return LinkResult{}, err
	}
	span.SetAttributes(attribute.Int("policies_created", out.PoliciesCreated))
	return out, nil
}

func observeStage(stage string, started time.Time) {
	metrics.IngestStageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}
