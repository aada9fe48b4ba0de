package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/internal/metrics"
	"github.com/Harshil230205/e-book-backend/internal/ratelimit"
	"github.com/Harshil230205/e-book-backend/internal/usertoken"
	"github.com/Harshil230205/e-book-backend/internal/util"
)

const defaultMaxUploadBytes int64 = 50 << 20

// RateLimiter decides whether one more attempt for key is allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// Config wires required dependencies for the HTTP server. Limiters and
// Metrics are optional.
type Config struct {
	App            *app.App
	Tokens         *usertoken.Issuer
	Metrics        *metrics.Metrics
	SignupLimiter  RateLimiter
	LoginLimiter   RateLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the catalog REST API.
type Server struct {
	app            *app.App
	tokens         *usertoken.Issuer
	metrics        *metrics.Metrics
	signupLimiter  RateLimiter
	loginLimiter   RateLimiter
	trustedProxies *util.TrustedProxies
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("server: token issuer required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		tokens:         cfg.Tokens,
		metrics:        cfg.Metrics,
		signupLimiter:  cfg.SignupLimiter,
		loginLimiter:   cfg.LoginLimiter,
		trustedProxies: cfg.TrustedProxies,
		maxUploadBytes: maxUpload,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = util.WithSecurityHeaders(util.WithCORS(s.mux))
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
	}
	return util.WithRequestID(util.WithRequestLog(h))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// accounts
	s.mux.HandleFunc("POST /api/user/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/user/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/admin/signup", s.handleAdminSignup)
	s.mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)

	// books
	s.mux.HandleFunc("GET /api/books", s.handleListApproved)
	s.mux.HandleFunc("GET /api/books/{$}", s.handleListApproved)
	s.mux.HandleFunc("GET /api/books/getAll", s.handleListPublic)
	s.mux.Handle("GET /api/books/getById/{id}", s.guarded(s.handleGetBook, s.optionalToken))
	s.mux.Handle("GET /api/books/my-books", s.guarded(s.handleMyBooks, s.requireToken))
	s.mux.Handle("POST /api/books/upload", s.guarded(s.handleUpload, s.requireToken))

	// admin
	s.mux.Handle("GET /api/admin/books/getAll", s.guarded(s.handleAdminListBooks, s.requireToken, s.requireAdmin))
	s.mux.Handle("GET /api/admin/books/getById/{id}", s.guarded(s.handleGetBook, s.requireToken, s.requireAdmin))
	s.mux.Handle("POST /api/admin/books/approve/{id}", s.guarded(s.handleApprove, s.requireToken, s.requireAdmin))
	s.mux.Handle("DELETE /api/admin/books/delete/{id}", s.guarded(s.handleDelete, s.requireToken, s.requireAdmin))
	s.mux.Handle("GET /api/admin/users/getAll", s.guarded(s.handleAdminListUsers, s.requireToken, s.requireAdmin))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Ping(ctx); err != nil {
		logger(r).Error("health_check_failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		logger(r).Info("security_event", logAttrs...)
	} else {
		logger(r).Warn("security_event", logAttrs...)
	}
	if s.metrics != nil {
		s.metrics.SecurityEvent(event, outcome)
	}
}

func (s *Server) bookEvent(action string) {
	if s.metrics != nil {
		s.metrics.BookEvent(action)
	}
}

// allowRate applies limiter to the caller's IP for this route. A nil limiter
// allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter RateLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	decision, err := limiter.Allow(r.Context(), key)
	if err != nil {
		logger(r).Error("rate_limit_unavailable", "err", err)
	}
	if decision.Allowed {
		return true
	}
	retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg, "")
	return false
}

// logger returns the request-scoped logger.
func logger(r *http.Request) *slog.Logger {
	return util.LoggerFromContext(r.Context())
}
