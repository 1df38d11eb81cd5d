package rbac

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/contextkeys"
	"github.com/platinummonkey/evalhub/pkg/httputil"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// Route variables read by the middleware
const (
	ModuleVar       = "module"
	OrganizationVar = "orgID"
)

// Middleware provides HTTP middleware for permission checking
type Middleware struct {
	gate   *Gate
	logger logrus.FieldLogger
}

// NewMiddleware creates a new permission middleware
func NewMiddleware(gate *Gate, logger logrus.FieldLogger) *Middleware {
	return &Middleware{
		gate:   gate,
		logger: logger,
	}
}

// RequireModule creates middleware that authorizes action on the module named
// by the {module} route variable, inside {orgID} when the route has one.
func (m *Middleware) RequireModule(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := contextkeys.User(r.Context())
			if user == nil {
				httputil.WriteUnauthorized(w, "Authentication required")
				return
			}

			vars := mux.Vars(r)
			module, err := auth.ParseModule(vars[ModuleVar])
			if err != nil {
				httputil.WriteBadRequest(w, err.Error())
				return
			}

			target := Target{Module: module, Action: action}
			if raw, ok := vars[OrganizationVar]; ok {
				orgID, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					httputil.WriteBadRequest(w, "invalid organization id")
					return
				}
				target.OrganizationID = &orgID
			}

			decision, err := m.gate.Check(r.Context(), user, target)
			if errors.Is(err, storage.ErrNotFound) {
				httputil.WriteNotFoundError(w, "organization not found")
				return
			}
			if err != nil {
				m.logger.WithError(err).WithField("user_id", user.ID).Error("Permission check failed")
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Permission check failed")
				return
			}

			if !decision.Allowed {
				m.logger.WithFields(logrus.Fields{
					"user_id": user.ID,
					"role":    user.Role,
					"module":  module,
					"action":  action,
					"reason":  decision.Reason,
				}).Info("Permission denied")
				httputil.WriteDetailedError(w, http.StatusForbidden, decision.Err(), map[string]string{
					"reason": string(decision.Reason),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePromptEditor creates middleware that admits developers only
func (m *Middleware) RequirePromptEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := contextkeys.User(r.Context())
		if user == nil {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !CanEditPrompts(user) {
			d := Deny(ReasonInsufficientRole)
			httputil.WriteDetailedError(w, http.StatusForbidden, d.Err(), map[string]string{
				"reason": string(d.Reason),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
