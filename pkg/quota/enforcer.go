package quota

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/observability"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// Defaults used when Limits is left zero
const (
	DefaultDemoReportLimit        = 5
	DefaultUpgradePromptThreshold = 4
)

// Outcomes recorded by evalhub_quota_increments_total
const (
	OutcomeOK       = "ok"
	OutcomeExceeded = "exceeded"
	OutcomeInactive = "inactive"
	OutcomeError    = "error"
)

// Limits configures the demo ceiling
type Limits struct {
	DemoReportLimit        int
	UpgradePromptThreshold int
}

// DefaultLimits returns the platform defaults
func DefaultLimits() Limits {
	return Limits{
		DemoReportLimit:        DefaultDemoReportLimit,
		UpgradePromptThreshold: DefaultUpgradePromptThreshold,
	}
}

// Store is the storage surface the enforcer needs
type Store interface {
	storage.UserReader
	storage.ReportCounter
}

// LimitStatus is the result of CheckLimit. Limit is storage.Unlimited for
// non-demo roles.
type LimitStatus struct {
	CanCreate    bool `json:"can_create"`
	CurrentCount int  `json:"current_count"`
	Limit        int  `json:"limit"`
	IsNearLimit  bool `json:"is_near_limit"`
	ShouldPrompt bool `json:"should_prompt"`
}

// Remaining returns the reports left, or -1 when unlimited
func (s LimitStatus) Remaining() int {
	if s.Limit == storage.Unlimited {
		return -1
	}
	return max(s.Limit-s.CurrentCount, 0)
}

// UpgradePrompt is the message shown to demo users near their limit
type UpgradePrompt struct {
	Show    bool   `json:"show"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// Enforcer checks and advances report counters
type Enforcer struct {
	store   Store
	limits  Limits
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// NewEnforcer creates an enforcer. metrics may be nil.
func NewEnforcer(store Store, limits Limits, metrics *observability.Metrics, logger logrus.FieldLogger) *Enforcer {
	if limits.DemoReportLimit <= 0 {
		limits.DemoReportLimit = DefaultDemoReportLimit
	}
	if limits.UpgradePromptThreshold < 0 || limits.UpgradePromptThreshold > limits.DemoReportLimit {
		limits.UpgradePromptThreshold = limits.DemoReportLimit - 1
	}
	return &Enforcer{
		store:   store,
		limits:  limits,
		metrics: metrics,
		logger:  logger,
	}
}

// Limits returns the effective limits
func (e *Enforcer) Limits() Limits {
	return e.limits
}

// LimitFor returns the ceiling applied to the user's role
func (e *Enforcer) LimitFor(user *auth.User) int {
	if user.IsDemo() {
		return e.limits.DemoReportLimit
	}
	return storage.Unlimited
}

// CheckLimit evaluates the user's counter against the limit without side effects
func (e *Enforcer) CheckLimit(user *auth.User) LimitStatus {
	limit := e.LimitFor(user)
	if limit == storage.Unlimited {
		return LimitStatus{
			CanCreate:    true,
			CurrentCount: user.ReportCount,
			Limit:        limit,
		}
	}

	canCreate := user.ReportCount < limit
	nearLimit := user.ReportCount >= e.limits.UpgradePromptThreshold
	return LimitStatus{
		CanCreate:    canCreate,
		CurrentCount: user.ReportCount,
		Limit:        limit,
		IsNearLimit:  nearLimit,
		ShouldPrompt: nearLimit && canCreate,
	}
}

// IncrementOnCreate records one created report and returns the new count.
// Demo users at the limit get a *QuotaExceededError.
func (e *Enforcer) IncrementOnCreate(ctx context.Context, userID int64) (int, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	role := string(user.Role)

	if !user.IsActive {
		e.metrics.RecordQuotaIncrement(role, OutcomeInactive)
		return 0, fmt.Errorf("user %d: %w", userID, ErrAccountInactive)
	}

	limit := e.LimitFor(user)
	count, ok, err := e.store.IncrementReportCount(ctx, userID, limit)
	if err != nil {
		e.metrics.RecordQuotaIncrement(role, OutcomeError)
		return 0, fmt.Errorf("failed to increment report count for user %d: %w", userID, err)
	}
	if !ok {
		e.metrics.RecordQuotaIncrement(role, OutcomeExceeded)
		e.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"count":   count,
			"limit":   limit,
		}).Info("Demo report limit reached")
		return count, &QuotaExceededError{UserID: userID, Current: count, Limit: limit}
	}

	e.metrics.RecordQuotaIncrement(role, OutcomeOK)
	e.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"role":    role,
		"count":   count,
	}).Debug("Report count incremented")
	return count, nil
}

// GetUpgradePrompt returns the prompt for the user's current count
func (e *Enforcer) GetUpgradePrompt(user *auth.User) UpgradePrompt {
	status := e.CheckLimit(user)
	if status.Limit == storage.Unlimited {
		return UpgradePrompt{}
	}

	remaining := status.Limit - status.CurrentCount
	if remaining == 1 {
		return UpgradePrompt{
			Show:  true,
			Title: "Last Demo Report",
			Message: fmt.Sprintf(
				"This is your final demo report, %d of %d. Upgrade to keep creating reports.",
				status.Limit, status.Limit),
		}
	}
	if status.ShouldPrompt {
		return UpgradePrompt{
			Show:  true,
			Title: "Demo Limit Approaching",
			Message: fmt.Sprintf(
				"You have %d demo reports remaining. Upgrade for unlimited reports.",
				remaining),
		}
	}
	return UpgradePrompt{}
}

// ResetUsage sets the user's counter back to zero
func (e *Enforcer) ResetUsage(ctx context.Context, userID int64) error {
	if err := e.store.ResetReportCount(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset report count for user %d: %w", userID, err)
	}
	e.logger.WithField("user_id", userID).Info("Report count reset")
	return nil
}
