package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/httputil"
	"github.com/platinummonkey/evalhub/pkg/lifecycle"
	"github.com/platinummonkey/evalhub/pkg/observability"
)

// Jobs is the lifecycle surface the admin routes drive
type Jobs interface {
	GetCleanupStats(ctx context.Context) (*lifecycle.CleanupStats, error)
	GetExpiredDemoUsers(ctx context.Context) ([]*auth.User, error)
	ExpiresAt(user *auth.User) time.Time
	CleanupExpiredDemoUsers(ctx context.Context, dryRun bool) (*lifecycle.CleanupResult, error)
	SendExpirationWarnings(ctx context.Context) (*lifecycle.WarningResult, error)
}

// Options configures a Server
type Options struct {
	// Token is the bearer token required on /admin routes
	Token string

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   logrus.FieldLogger
}

// Server holds the admin handlers
type Server struct {
	jobs    Jobs
	opts    Options
	handler http.Handler
}

// ExpiredUser is one row of GET /admin/demo/expired
type ExpiredUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewServer builds the router and its middleware chain
func NewServer(jobs Jobs, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	s := &Server{jobs: jobs, opts: opts}

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	s.RegisterRoutes(router)

	chain := httputil.Chain(
		httputil.RecoveryMiddleware(opts.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
	)
	s.handler = otelhttp.NewHandler(chain(router), "evalhub-admin")
	return s
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RegisterRoutes registers the admin routes on r
func (s *Server) RegisterRoutes(r *mux.Router) {
	// Probes
	if s.opts.Health != nil {
		r.HandleFunc("/healthz", s.opts.Health.Liveness).Methods("GET")
		r.HandleFunc("/readyz", s.opts.Health.Readiness).Methods("GET")
	}
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", observability.MetricsHandler(s.opts.Gatherer)).Methods("GET")
	}

	// Demo lifecycle
	demo := r.PathPrefix("/admin/demo").Subrouter()
	demo.Use(s.requireToken)
	demo.HandleFunc("/stats", s.getStats).Methods("GET")
	demo.HandleFunc("/expired", s.getExpired).Methods("GET")
	demo.HandleFunc("/cleanup", s.runCleanup).Methods("POST")
	demo.HandleFunc("/warnings", s.sendWarnings).Methods("POST")
}

// requireToken checks the bearer token in constant time
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token == "" {
			httputil.WriteUnauthorized(w, "admin token not configured")
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Token)) != 1 {
			httputil.WriteUnauthorized(w, "invalid or missing bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getStats handles GET /admin/demo/stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.GetCleanupStats(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, stats)
}

// getExpired handles GET /admin/demo/expired
func (s *Server) getExpired(w http.ResponseWriter, r *http.Request) {
	users, err := s.jobs.GetExpiredDemoUsers(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	out := make([]ExpiredUser, 0, len(users))
	for _, u := range users {
		out = append(out, ExpiredUser{
			ID:        u.ID,
			Username:  u.Username,
			ExpiresAt: s.jobs.ExpiresAt(u),
		})
	}
	_ = httputil.WriteJSON(w, http.StatusOK, out)
}

// runCleanup handles POST /admin/demo/cleanup
// Query params:
//   - dry_run: report without changing anything - default: true
func (s *Server) runCleanup(w http.ResponseWriter, r *http.Request) {
	dryRun, err := httputil.ParseQueryBool(r, "dry_run", true)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.jobs.CleanupExpiredDemoUsers(r.Context(), dryRun)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, result)
}

// sendWarnings handles POST /admin/demo/warnings
func (s *Server) sendWarnings(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.SendExpirationWarnings(r.Context())
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, lifecycle.ErrCleanupInProgress) {
		httputil.WriteConflict(w, err.Error())
		return
	}
	s.opts.Logger.WithError(err).Error("admin job failed")
	httputil.WriteInternalError(w, err)
}
