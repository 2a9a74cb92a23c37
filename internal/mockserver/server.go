package mockserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Server answers the manifest protocol from a fixture.
type Server struct {
	fixture *Fixture
	logger  *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimit bounds accepted requests with a shared token bucket.
// Requests over the limit get a 429.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithClock injects the time source used for expires_at stamps.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// New creates a mock manifest server over the given fixture.
func New(fx *Fixture, opts ...ServerOption) *Server {
	s := &Server{
		fixture: fx,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/manifest", s.handleManifest)
	return r
}

// manifestRequest mirrors the client's POST body.
type manifestRequest struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// manifestResponse is the wire shape of a served manifest.
type manifestResponse struct {
	Table       string            `json:"table"`
	Schema      string            `json:"schema"`
	Files       []string          `json:"files"`
	Columns     []columnResponse  `json:"columns,omitempty"`
	RowFilters  []string          `json:"row_filters,omitempty"`
	ColumnMasks map[string]string `json:"column_masks,omitempty"`
	ExpiresAt   string            `json:"expires_at"`
}

type columnResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	role, ok := s.fixture.APIKeys[r.Header.Get("X-API-Key")]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	var req manifestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Table == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a table field")
		return
	}

	tbl, found := s.fixture.lookup(req.Schema, req.Table)
	if !found {
		writeError(w, http.StatusNotFound, "table not found on server")
		return
	}
	if tbl.Denies(role) {
		writeError(w, http.StatusForbidden, "role "+strconv.Quote(role)+" may not read table "+strconv.Quote(req.Table))
		return
	}

	schema := tbl.Schema
	if schema == "" {
		schema = "main"
	}
	resp := manifestResponse{
		Table:       req.Table,
		Schema:      schema,
		Files:       tbl.Files,
		RowFilters:  tbl.RowFilters,
		ColumnMasks: tbl.ColumnMasks,
		ExpiresAt:   s.now().UTC().Add(tbl.ExpiryTTL()).Format(time.RFC3339),
	}
	for _, c := range tbl.Columns {
		resp.Columns = append(resp.Columns, columnResponse{Name: c.Name, Type: c.Type})
	}
	writeJSON(w, http.StatusOK, resp)
}

// requestID reuses the caller's X-Request-Id or assigns one, and echoes it
// on the response.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"request_id", r.Header.Get("X-Request-Id"),
			"duration", time.Since(start))
	})
}

// rateLimit rejects requests over the shared bucket instead of queueing
// them, so a flooding client sees immediate 429s.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"code": status, "message": message})
}
