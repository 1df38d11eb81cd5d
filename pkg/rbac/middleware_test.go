package rbac

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/contextkeys"
	"github.com/platinummonkey/evalhub/pkg/orgs"
	"github.com/platinummonkey/evalhub/pkg/storage/memory"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	store := memory.New()
	require.NoError(t, store.CreateOrganization(context.Background(), &orgs.Organization{ID: 1, Name: "O1", IsActive: true}))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := NewMiddleware(NewGate(orgs.NewStoreRegistry(store)), logger)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/modules/{module}/reports", m.RequireModule(ActionCreateReport)(ok)).Methods(http.MethodPost)
	r.Handle("/modules/{module}/orgs/{orgID}/cases", m.RequireModule(ActionView)(ok)).Methods(http.MethodGet)
	r.Handle("/prompts", m.RequirePromptEditor(ok)).Methods(http.MethodPut)
	return r
}

func serve(r http.Handler, method, path string, user *auth.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != nil {
		req = req.WithContext(contextkeys.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_RequireModule(t *testing.T) {
	r := newTestRouter(t)
	customer := newUser(10, auth.RoleCustomer, int64p(1), auth.ModuleK12)

	tests := []struct {
		name       string
		method     string
		path       string
		user       *auth.User
		wantStatus int
		wantReason string
	}{
		{"unauthenticated", http.MethodPost, "/modules/k12/reports", nil, http.StatusUnauthorized, ""},
		{"unknown module", http.MethodPost, "/modules/chess/reports", customer, http.StatusBadRequest, ""},
		{"allowed", http.MethodPost, "/modules/k12/reports", customer, http.StatusOK, ""},
		{"module not assigned", http.MethodPost, "/modules/tutoring/reports", customer, http.StatusForbidden, string(ReasonModuleNotAssigned)},
		{"same organization", http.MethodGet, "/modules/k12/orgs/1/cases", customer, http.StatusOK, ""},
		{"other organization", http.MethodGet, "/modules/k12/orgs/2/cases", customer, http.StatusForbidden, string(ReasonOrganizationMismatch)},
		{"bad organization id", http.MethodGet, "/modules/k12/orgs/abc/cases", customer, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path, tt.user)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantReason != "" {
				var body struct {
					Details map[string]string `json:"details"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantReason, body.Details["reason"])
			}
		})
	}
}

func TestMiddleware_OrganizationNotFound(t *testing.T) {
	r := newTestRouter(t)
	member := newUser(20, auth.RoleOrgAdmin, int64p(9), auth.ModuleK12)

	rec := serve(r, http.MethodGet, "/modules/k12/orgs/9/cases", member)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddleware_RequirePromptEditor(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPut, "/prompts", newUser(1, auth.RoleDeveloper, nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/prompts", newUser(2, auth.RoleAdmin, nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPut, "/prompts", nil).Code)
}
