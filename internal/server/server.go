// Package server exposes the kinship facade as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/cognicore/kinship/pkg/kinship"
	"github.com/cognicore/kinship/pkg/kinship/catalog"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

// Service is the part of the facade the API serves.
type Service interface {
	Ask(ctx context.Context, question string) (kinship.Response, error)
	AddRelationship(ctx context.Context, r kinship.Relationship) (string, error)
	AddEthnicity(ctx context.Context, e kinship.Ethnicity) (string, error)
	Functions() []catalog.Function
	History(ctx context.Context, limit int) (kinship.History, error)
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// EthnicityRequest is the body of POST /api/facts/ethnicity. Fraction is
// a pointer so that a missing value is told apart from 0.
type EthnicityRequest struct {
	Name     string   `json:"name"`
	Group    string   `json:"group"`
	Fraction *float64 `json:"fraction"`
}

// MessageResponse carries a data-entry confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// FunctionInfo describes one catalog entry.
type FunctionInfo struct {
	Name        string   `json:"name"`
	Signature   string   `json:"signature"`
	Params      []string `json:"params"`
	Result      string   `json:"result"`
	Description string   `json:"description"`
}

// Options configures a Server.
type Options struct {
	// MaxConns caps concurrent connections; 0 means no cap.
	MaxConns int
	// AsksPerMinute caps POST /api/ask, which costs model calls; 0 means
	// no cap.
	AsksPerMinute int
	Logger        *zap.Logger
}

// Server serves the API.
type Server struct {
	svc       Service
	opts      Options
	logger    *zap.Logger
	limiter   *rate.Limiter
	startTime time.Time
}

// New creates a server for svc.
func New(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, opts: opts, logger: logger, startTime: time.Now()}
	if opts.AsksPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(opts.AsksPerMinute)/60.0), opts.AsksPerMinute)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/functions", s.handleFunctions)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/facts/relationship", s.handleRelationship)
	mux.HandleFunc("POST /api/facts/ethnicity", s.handleEthnicity)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConns)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", zap.String("addr", ln.Addr().String()), zap.Int("max_conns", s.opts.MaxConns))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		s.logger.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	fns := s.svc.Functions()
	out := make([]FunctionInfo, len(fns))
	for i, f := range fns {
		out[i] = FunctionInfo{
			Name:        f.Name,
			Signature:   f.Signature(),
			Params:      f.Params,
			Result:      string(f.Result),
			Description: f.Description,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error: "Too many questions. Please try again shortly.",
			Hint:  "server.asks_per_minute limits how often questions are answered",
		})
		return
	}
	var req AskRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, err, internalerr.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelationship(w http.ResponseWriter, r *http.Request) {
	var req kinship.Relationship
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.svc.AddRelationship(r.Context(), req)
	if err != nil {
		s.writeError(w, err, internalerr.SaveMessage(err))
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

func (s *Server) handleEthnicity(w http.ResponseWriter, r *http.Request) {
	var req EthnicityRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Fraction == nil {
		err := internalerr.Invalid("fraction is required")
		s.writeError(w, err, internalerr.SaveMessage(err))
		return
	}
	msg, err := s.svc.AddEthnicity(r.Context(), kinship.Ethnicity{Name: req.Name, Group: req.Group, Fraction: *req.Fraction})
	if err != nil {
		s.writeError(w, err, internalerr.SaveMessage(err))
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			err := internalerr.Invalid("limit must be a non-negative integer, got %q", v)
			s.writeError(w, err, internalerr.UserMessage(err))
			return
		}
		limit = n
	}
	h, err := s.svc.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err, internalerr.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrUnresolvedIntent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, internalerr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, internalerr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internalerr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error, msg string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	resp := ErrorResponse{Error: msg, Hint: internalerr.Hints(err)}
	if resp.Hint == msg {
		resp.Hint = ""
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
