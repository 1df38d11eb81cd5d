package quota

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/contextkeys"
	"github.com/platinummonkey/evalhub/pkg/httputil"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// Response headers set by EnforceReportQuota on demo requests
const (
	RemainingHeader     = "X-Demo-Reports-Remaining"
	UpgradePromptHeader = "X-Demo-Upgrade-Prompt"
)

// Middleware guards report creation routes with the Enforcer
//
// REQUIRES: the authentication layer must put the user in the request context
// (contextkeys.WithUser) before this middleware runs.
type Middleware struct {
	enforcer *Enforcer
	logger   logrus.FieldLogger
}

// NewMiddleware creates a new quota middleware
func NewMiddleware(enforcer *Enforcer, logger logrus.FieldLogger) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		logger:   logger,
	}
}

// EnforceReportQuota reserves one report for the caller before the handler
// runs. The slot is consumed even if the handler later fails.
//
// Returns: 401 without a user, 403 when the demo limit is reached or the
// account is inactive.
func (m *Middleware) EnforceReportQuota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := contextkeys.User(r.Context())
		if user == nil {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}

		count, err := m.enforcer.IncrementOnCreate(r.Context(), user.ID)
		if err != nil {
			var qe *QuotaExceededError
			switch {
			case errors.As(err, &qe):
				httputil.WriteDetailedError(w, http.StatusForbidden, ErrQuotaExceeded, map[string]string{
					"current": strconv.Itoa(qe.Current),
					"limit":   strconv.Itoa(qe.Limit),
				})
			case errors.Is(err, ErrAccountInactive):
				httputil.WriteErrorMessage(w, http.StatusForbidden, ErrAccountInactive.Error())
			case errors.Is(err, storage.ErrNotFound):
				httputil.WriteUnauthorized(w, "unknown user")
			default:
				m.logger.WithError(err).WithField("user_id", user.ID).Error("Quota check failed")
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Quota check failed")
			}
			return
		}

		if user.IsDemo() {
			after := *user
			after.ReportCount = count
			status := m.enforcer.CheckLimit(&after)
			w.Header().Set(RemainingHeader, strconv.Itoa(status.Remaining()))
			if prompt := m.enforcer.GetUpgradePrompt(&after); prompt.Show {
				w.Header().Set(UpgradePromptHeader, prompt.Title)
			}
		}

		next.ServeHTTP(w, r)
	})
}
