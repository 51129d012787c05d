package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/auth"
	"github.com/pramodsurya033/Insuredmine/ingest"
	"github.com/pramodsurya033/Insuredmine/metrics"
	"github.com/pramodsurya033/Insuredmine/policy"
	"github.com/pramodsurya033/Insuredmine/schedule"
)

type ctxKey string

const ctxKeySubject ctxKey = "subject"

const defaultMaxUpload = 100 << 20

type ingestService interface {
	IngestFile(ctx context.Context, path string) (ingest.Summary, error)
}

type policyService interface {
	SearchByFirstname(ctx context.Context, username string) (policy.SearchResult, error)
	Aggregated(ctx context.Context) ([]policy.UserAggregate, error)
}

type scheduleService interface {
	Schedule(ctx context.Context, req schedule.Request) (schedule.Message, error)
	List(ctx context.Context, limit int) ([]schedule.Message, error)
}

type tokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Server exposes the HTTP API.
type Server struct {
	ingestService   ingestService
	policyService   policyService
	scheduleService scheduleService
	tokens          tokenVerifier
	uploadDir       string
	maxUpload       int64
	now             func() time.Time
	logger          *zap.Logger
}

// Routes builds the request multiplexer.
func (s *Server) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/upload", s.handleUpload)
	api.HandleFunc("/api/policies/search", s.handlePolicySearch)
	api.HandleFunc("/api/policies/aggregated", s.handleAggregated)
	api.HandleFunc("/api/messages/schedule", s.handleScheduleMessage)
	api.HandleFunc("/api/messages", s.handleMessages)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.requireToken(api))
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s.instrument(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.clock().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	maxUpload := s.maxUpload
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "File exceeds the upload limit")
			return
		}
		writeFailure(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" && ext != ".tsv" {
		writeFailure(w, http.StatusBadRequest, "Only .csv and .tsv files are supported")
		return
	}

	path, err := s.stage(file, ext)
	if err != nil {
		s.logger.Error("failed to stage upload", zap.String("filename", header.Filename), zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}
	defer os.Remove(path)

	summary, err := s.ingestService.IngestFile(r.Context(), path)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Error processing file: "+err.Error())
		return
	}

	s.logger.Info("file ingested",
		zap.String("subject", subjectFrom(r.Context())),
		zap.String("filename", header.Filename),
		zap.Int("records", summary.TotalRecords),
		zap.Int("policies_created", summary.PoliciesCreated))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "File processed successfully",
		"data":    summary,
	})
}

func (s *Server) stage(src io.Reader, ext string) (string, error) {
	dir := s.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (s *Server) handlePolicySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeFailure(w, http.StatusBadRequest, "username query parameter is required")
		return
	}

	result, err := s.policyService.SearchByFirstname(r.Context(), username)
	if err != nil {
		if errors.Is(err, policy.ErrEmptyQuery) {
			writeFailure(w, http.StatusBadRequest, "username query parameter is required")
			return
		}
		s.logger.Error("policy search failed", zap.String("username", username), zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Failed to search policies")
		return
	}

	if !result.Found {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  false,
			"message":  "User not found",
			"policies": []policy.Detail{},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user":     result.User,
		"policies": result.Policies,
		"count":    result.Count,
	})
}

func (s *Server) handleAggregated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	report, err := s.policyService.Aggregated(r.Context())
	if err != nil {
		s.logger.Error("aggregation failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Failed to aggregate policies")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    report,
		"count":   len(report),
	})
}

func (s *Server) handleScheduleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req schedule.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := s.scheduleService.Schedule(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidRequest):
			writeFailure(w, http.StatusBadRequest, "message, day and time are required")
		case errors.Is(err, schedule.ErrInvalidSchedule):
			writeFailure(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("schedule failed", zap.Error(err))
			writeFailure(w, http.StatusInternalServerError, "Failed to schedule message")
		}
		return
	}

	s.logger.Info("message scheduled",
		zap.String("subject", subjectFrom(r.Context())),
		zap.String("id", msg.ID),
		zap.Time("scheduled_date", msg.ScheduledDate))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Message scheduled successfully",
		"data":    msg,
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeFailure(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := s.scheduleService.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list messages failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    messages,
		"count":   len(messages),
	})
}

// requireToken enforces bearer tokens when a verifier is configured. Viewers
// may only issue GET requests.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if r.Method != http.MethodGet && !claims.Role.CanWrite() {
			writeFailure(w, http.StatusForbidden, "role may not modify resources")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySubject, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// subjectFrom returns the token subject of an authenticated request, or
// "anonymous" when auth is disabled.
func subjectFrom(ctx context.Context) string {
	if subject, ok := ctx.Value(ctxKeySubject).(string); ok && subject != "" {
		return subject
	}
	return "anonymous"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/metrics" {
			return
		}
		metrics.HTTPRequestsTotal.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}

func routeLabel(path string) string {
	switch path {
	case "/api/upload", "/api/policies/search", "/api/policies/aggregated",
		"/api/messages/schedule", "/api/messages", "/health":
		return path
	default:
		return "other"
	}
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
