package lifecycle

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/observability"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// userOutcome is what processing one user contributed to the run
type userOutcome struct {
	deactivated bool
	skipped     bool
	reports     int
	err         *CleanupError
}

// CleanupExpiredDemoUsers exports, purges and anonymizes every active demo
// user past retention. With dryRun nothing is written; the counts are what a
// real run would report.
func (s *Scheduler) CleanupExpiredDemoUsers(ctx context.Context, dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{
		RunID:     newRunID(),
		DryRun:    dryRun,
		StartedAt: s.now(),
		Errors:    []*CleanupError{},
	}
	logger := s.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"job":     "cleanup",
		"dry_run": dryRun,
	})

	lease, err := s.acquire(ctx, CleanupLockName, logger)
	if err != nil {
		return nil, err
	}
	defer s.release(lease, CleanupLockName, logger)

	expired, err := s.GetExpiredDemoUsers(ctx)
	if err != nil {
		return nil, err
	}
	result.UsersProcessed = len(expired)
	logger.WithField("users", len(expired)).Info("Starting demo cleanup")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)

	for _, user := range expired {
		g.Go(func() error {
			out := s.cleanupUser(ctx, user, dryRun, logger)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case out.err != nil:
				result.Errors = append(result.Errors, out.err)
			case out.skipped:
				result.UsersSkipped++
			case out.deactivated:
				result.UsersDeactivated++
				result.ReportsDeleted += out.reports
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(result.Errors, func(a, b *CleanupError) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	result.FinishedAt = s.now()

	s.metrics.ObserveRun("cleanup", dryRun, result.FinishedAt.Sub(result.StartedAt))
	if !dryRun {
		s.metrics.RecordLifecycleUsers("deactivated", result.UsersDeactivated)
		s.metrics.RecordLifecycleUsers("failed", len(result.Errors))
	}

	logger.WithFields(logrus.Fields{
		"users_processed":   result.UsersProcessed,
		"users_deactivated": result.UsersDeactivated,
		"users_skipped":     result.UsersSkipped,
		"reports_deleted":   result.ReportsDeleted,
		"errors":            len(result.Errors),
	}).Info("Demo cleanup complete")

	return result, nil
}

func (s *Scheduler) cleanupUser(ctx context.Context, user *auth.User, dryRun bool, logger logrus.FieldLogger) (out userOutcome) {
	logger = logger.WithField("user_id", user.ID)

	var panicErr error
	defer func() {
		if panicErr != nil {
			out = userOutcome{err: &CleanupError{UserID: user.ID, Stage: StagePurge, Err: panicErr}}
		}
	}()
	defer observability.RecoverToError(logger, "demo cleanup", &panicErr)

	if dryRun {
		snap, err := s.exporter.Snapshot(ctx, user)
		if err != nil {
			logger.WithError(err).Warn("Dry run: export would fail")
			return userOutcome{err: &CleanupError{UserID: user.ID, Stage: StageExport, Err: err}}
		}
		logger.WithField("reports", len(snap.Resources)).Info("Dry run: would deactivate user")
		return userOutcome{deactivated: true, reports: len(snap.Resources)}
	}

	// Export before anything destructive; a failed export leaves the user
	// untouched for the next run.
	snap, receipt, err := s.exporter.Export(ctx, user)
	if err != nil {
		logger.WithError(err).Error("Failed to export user data, skipping user")
		return userOutcome{err: &CleanupError{UserID: user.ID, Stage: StageExport, Err: err}}
	}

	// Only what the archive holds may be deleted.
	exported := make([]int64, 0, len(snap.Resources))
	for _, r := range snap.Resources {
		exported = append(exported, r.ID)
	}

	anonymized := user.Clone()
	anonymized.Anonymize(s.now())

	deleted, err := s.store.PurgeUser(ctx, anonymized, exported)
	if errors.Is(err, storage.ErrNotActive) {
		logger.Info("User already deactivated by another run")
		return userOutcome{skipped: true}
	}
	if errors.Is(err, storage.ErrUnexportedCases) {
		logger.WithError(err).Warn("User created cases after export, leaving active for the next run")
		return userOutcome{err: &CleanupError{UserID: user.ID, Stage: StagePurge, Err: err}}
	}
	if err != nil {
		logger.WithError(err).Error("Failed to purge user")
		return userOutcome{err: &CleanupError{UserID: user.ID, Stage: StagePurge, Err: err}}
	}

	logger.WithFields(logrus.Fields{
		"reports_deleted": deleted,
		"export_key":      receipt.Key,
	}).Info("Demo user deactivated")
	return userOutcome{deactivated: true, reports: deleted}
}
