package lifecycle

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/notify"
)

// SendExpirationWarnings notifies every user in the warning state who has not
// been warned in the current window
func (s *Scheduler) SendExpirationWarnings(ctx context.Context) (*WarningResult, error) {
	result := &WarningResult{
		RunID:     newRunID(),
		StartedAt: s.now(),
		Errors:    []*CleanupError{},
	}
	logger := s.logger.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"job":    "warnings",
	})

	lease, err := s.acquire(ctx, WarningLockName, logger)
	if err != nil {
		return nil, err
	}
	defer s.release(lease, WarningLockName, logger)

	users, err := s.GetUsersNeedingWarning(ctx)
	if err != nil {
		return nil, err
	}
	result.UsersEligible = len(users)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)

	for _, user := range users {
		g.Go(func() error {
			warned, cerr := s.warnUser(ctx, user, logger)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case cerr != nil:
				result.Errors = append(result.Errors, cerr)
			case warned:
				result.UsersWarned++
			default:
				result.UsersSkipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(result.Errors, func(a, b *CleanupError) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	result.FinishedAt = s.now()

	s.metrics.ObserveRun("warnings", false, result.FinishedAt.Sub(result.StartedAt))
	s.metrics.RecordLifecycleUsers("warned", result.UsersWarned)

	logger.WithFields(logrus.Fields{
		"users_eligible": result.UsersEligible,
		"users_warned":   result.UsersWarned,
		"users_skipped":  result.UsersSkipped,
		"errors":         len(result.Errors),
	}).Info("Expiration warnings complete")

	return result, nil
}

func (s *Scheduler) warnUser(ctx context.Context, user *auth.User, logger logrus.FieldLogger) (bool, *CleanupError) {
	logger = logger.WithField("user_id", user.ID)
	now := s.now()
	windowStart := s.ExpiresAt(user).Add(-s.cfg.warningWindow())
	previous := user.LastWarnedAt

	claimed, err := s.store.ClaimWarning(ctx, user.ID, windowStart, now)
	if err != nil {
		logger.WithError(err).Error("Failed to claim warning marker")
		return false, &CleanupError{UserID: user.ID, Stage: StageClaim, Err: err}
	}
	if !claimed {
		logger.Debug("User already warned in this window")
		return false, nil
	}

	msg := notify.ExpirationWarning(user, s.DaysUntilExpiration(user), s.cfg.DemoReportLimit)
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification("failed")
		logger.WithError(err).Warn("Failed to send expiration warning")

		if rerr := s.store.RestoreWarning(ctx, user.ID, previous); rerr != nil {
			logger.WithError(rerr).Error("Failed to restore warning marker")
			err = fmt.Errorf("%w (marker not restored: %v)", err, rerr)
		}
		return false, &CleanupError{UserID: user.ID, Stage: StageNotify, Err: err}
	}

	s.metrics.RecordNotification("sent")
	logger.WithField("days_left", s.DaysUntilExpiration(user)).Info("Expiration warning sent")
	return true, nil
}
