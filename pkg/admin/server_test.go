package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/lifecycle"
	"github.com/platinummonkey/evalhub/pkg/observability"
)

const testToken = "admin-secret"

var testExpiry = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

type fakeJobs struct {
	mu         sync.Mutex
	dryRuns    []bool
	warnings   int
	cleanupErr error
	warnErr    error
	statsErr   error
	expired    []*auth.User
}

func (f *fakeJobs) GetCleanupStats(ctx context.Context) (*lifecycle.CleanupStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &lifecycle.CleanupStats{TotalDemoUsers: 3, ActiveDemoUsers: 2, ExpiredUsers: 1, TotalDemoReports: 7}, nil
}

func (f *fakeJobs) GetExpiredDemoUsers(ctx context.Context) ([]*auth.User, error) {
	return f.expired, nil
}

func (f *fakeJobs) ExpiresAt(user *auth.User) time.Time {
	return testExpiry
}

func (f *fakeJobs) CleanupExpiredDemoUsers(ctx context.Context, dryRun bool) (*lifecycle.CleanupResult, error) {
	f.mu.Lock()
	f.dryRuns = append(f.dryRuns, dryRun)
	f.mu.Unlock()
	if f.cleanupErr != nil {
		return nil, f.cleanupErr
	}
	return &lifecycle.CleanupResult{RunID: "run-1", DryRun: dryRun, UsersProcessed: 1}, nil
}

func (f *fakeJobs) SendExpirationWarnings(ctx context.Context) (*lifecycle.WarningResult, error) {
	f.mu.Lock()
	f.warnings++
	f.mu.Unlock()
	if f.warnErr != nil {
		return nil, f.warnErr
	}
	return &lifecycle.WarningResult{RunID: "run-2", UsersEligible: 2, UsersWarned: 2}, nil
}

func newTestServer(t *testing.T, jobs *fakeJobs) (*Server, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewServer(jobs, Options{
		Token:    testToken,
		Health:   observability.NewHealthChecker(nil, nil),
		Metrics:  observability.NewMetrics(registry),
		Gatherer: registry,
		Logger:   observability.NewDiscardLogger(),
	}), registry
}

func do(t *testing.T, s *Server, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_RegisterRoutes(t *testing.T) {
	s, _ := newTestServer(t, &fakeJobs{})
	router := mux.NewRouter()
	s.RegisterRoutes(router)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/healthz"},
		{"GET", "/readyz"},
		{"GET", "/metrics"},
		{"GET", "/admin/demo/stats"},
		{"GET", "/admin/demo/expired"},
		{"POST", "/admin/demo/cleanup"},
		{"POST", "/admin/demo/warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			assert.True(t, router.Match(req, &match), "Route %s %s should be registered", tt.method, tt.path)
		})
	}
}

func TestServer_RequireToken(t *testing.T) {
	jobs := &fakeJobs{}
	s, _ := newTestServer(t, jobs)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"prefix of real token", "admin", http.StatusUnauthorized},
		{"valid", testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, "GET", "/admin/demo/stats", tt.token)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("basic scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/demo/stats", nil)
		req.Header.Set("Authorization", "Basic "+testToken)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestServer_NoTokenConfigured(t *testing.T) {
	s := NewServer(&fakeJobs{}, Options{Logger: observability.NewDiscardLogger()})

	rec := do(t, s, "POST", "/admin/demo/cleanup", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestServer_Probes(t *testing.T) {
	s, _ := newTestServer(t, &fakeJobs{})

	rec := do(t, s, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, "GET", "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), observability.StatusHealthy)

	// the two probe requests above are visible in the registry
	rec = do(t, s, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `evalhub_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestServer_GetStats(t *testing.T) {
	s, _ := newTestServer(t, &fakeJobs{})

	rec := do(t, s, "GET", "/admin/demo/stats", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats lifecycle.CleanupStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalDemoUsers)
	assert.Equal(t, 7, stats.TotalDemoReports)
}

func TestServer_GetStats_Error(t *testing.T) {
	s, _ := newTestServer(t, &fakeJobs{statsErr: errors.New("db down")})

	rec := do(t, s, "GET", "/admin/demo/stats", testToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestServer_GetExpired(t *testing.T) {
	jobs := &fakeJobs{expired: []*auth.User{
		{ID: 7, Username: "demo-7", Role: auth.RoleDemo},
		{ID: 9, Username: "demo-9", Role: auth.RoleDemo},
	}}
	s, _ := newTestServer(t, jobs)

	rec := do(t, s, "GET", "/admin/demo/expired", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []ExpiredUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, "demo-9", got[1].Username)
	assert.True(t, got[0].ExpiresAt.Equal(testExpiry))
}

func TestServer_GetExpired_Empty(t *testing.T) {
	s, _ := newTestServer(t, &fakeJobs{})

	rec := do(t, s, "GET", "/admin/demo/expired", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestServer_RunCleanup(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantDryRun []bool
	}{
		{"defaults to dry run", "/admin/demo/cleanup", http.StatusOK, []bool{true}},
		{"explicit dry run", "/admin/demo/cleanup?dry_run=true", http.StatusOK, []bool{true}},
		{"real run", "/admin/demo/cleanup?dry_run=false", http.StatusOK, []bool{false}},
		{"malformed flag", "/admin/demo/cleanup?dry_run=maybe", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{}
			s, _ := newTestServer(t, jobs)

			rec := do(t, s, "POST", tt.target, testToken)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDryRun, jobs.dryRuns)
		})
	}
}

func TestServer_RunCleanup_Conflict(t *testing.T) {
	jobs := &fakeJobs{cleanupErr: lifecycle.ErrCleanupInProgress}
	s, _ := newTestServer(t, jobs)

	rec := do(t, s, "POST", "/admin/demo/cleanup?dry_run=false", testToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_SendWarnings(t *testing.T) {
	jobs := &fakeJobs{}
	s, _ := newTestServer(t, jobs)

	rec := do(t, s, "POST", "/admin/demo/warnings", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, jobs.warnings)

	var result lifecycle.WarningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.UsersWarned)
}

func TestServer_SendWarnings_Errors(t *testing.T) {
	t.Run("lock held", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeJobs{warnErr: lifecycle.ErrCleanupInProgress})
		rec := do(t, s, "POST", "/admin/demo/warnings", testToken)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeJobs{warnErr: errors.New("boom")})
		rec := do(t, s, "POST", "/admin/demo/warnings", testToken)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &fakeJobs{})

	rec := do(t, s, "GET", "/admin/demo/cleanup", testToken)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
