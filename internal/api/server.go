// Package api is the HTTP rendering boundary of the assistant.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/models"
)

const maxBodyBytes = 16 << 10

// Sessions is satisfied by *conversation.Manager.
type Sessions interface {
	Start(ctx context.Context) (models.Snapshot, error)
	Send(ctx context.Context, id, text string) (*conversation.TurnResult, error)
	Reset(ctx context.Context, id string) (models.Snapshot, error)
	Get(ctx context.Context, id string) (models.Snapshot, error)
	Metrics(ctx context.Context, id string) (models.SessionMetrics, error)
	End(ctx context.Context, id string) error
}

// DailyFunc returns the summary for day's calendar date.
type DailyFunc func(ctx context.Context, day time.Time) (models.DailySummary, error)

// Check is one readiness probe.
type Check func(ctx context.Context) error

type Server struct {
	sessions Sessions
	daily    DailyFunc
	checks   map[string]Check
	limiter  *rate.Limiter
	location *time.Location
	logger   logger.Logger
}

type Option func(*Server)

func WithDaily(f DailyFunc) Option {
	return func(s *Server) { s.daily = f }
}

func WithReadyCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithLocation sets the zone calendar dates are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.location = loc }
}

func NewServer(cfg config.ServerConfig, sessions Sessions, log logger.Logger, opts ...Option) *Server {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 30
	}
	s := &Server{
		sessions: sessions,
		checks:   make(map[string]Check),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		location: time.Local,
		logger:   logger.Component(log, "api"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed, rate-limited handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/sessions", s.startSession)
	api.HandleFunc("GET /api/sessions/{id}", s.getSession)
	api.HandleFunc("DELETE /api/sessions/{id}", s.endSession)
	api.HandleFunc("POST /api/sessions/{id}/messages", s.sendMessage)
	api.HandleFunc("POST /api/sessions/{id}/reset", s.resetSession)
	api.HandleFunc("GET /api/sessions/{id}/metrics", s.sessionMetrics)
	api.HandleFunc("GET /api/metrics/daily", s.dailyMetrics)

	root := http.NewServeMux()
	root.Handle("/api/", s.rateLimit(api))
	root.HandleFunc("GET /health", s.health)
	root.HandleFunc("GET /ready", s.ready)
	root.Handle("GET /metrics", promhttp.Handler())
	return root
}

// NewHTTPServer wraps Handler with the configured timeouts.
func (s *Server) NewHTTPServer(cfg config.ServerConfig) *http.Server {
	read := config.GetDuration(cfg.ReadTimeout)
	if read <= 0 {
		read = 15 * time.Second
	}
	write := config.GetDuration(cfg.WriteTimeout)
	if write <= 0 {
		write = 60 * time.Second
	}
	addr := cfg.Address
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.logger.Warn("rate limit exceeded", map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			writeJSON(w, http.StatusTooManyRequests, errorBody{Code: "RATE_LIMITED", Message: http.StatusText(http.StatusTooManyRequests)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case errors.ErrCodeSessionStoreFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	writeJSON(w, status, errorBody{Code: string(stdErr.Code), Message: stdErr.Message, Details: stdErr.Details})
}
