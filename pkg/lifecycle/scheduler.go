package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/export"
	"github.com/platinummonkey/evalhub/pkg/lock"
	"github.com/platinummonkey/evalhub/pkg/notify"
	"github.com/platinummonkey/evalhub/pkg/observability"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// Lock names held by the two jobs
const (
	CleanupLockName = "demo-cleanup"
	WarningLockName = "demo-warnings"
)

// Store is the storage surface the scheduler needs
type Store interface {
	storage.UserReader
	storage.WarningMarker
	storage.UserPurger
	storage.CaseReader
}

// Exporter snapshots a user before cleanup
type Exporter interface {
	Snapshot(ctx context.Context, user *auth.User) (*export.Snapshot, error)
	Export(ctx context.Context, user *auth.User) (*export.Snapshot, *export.Receipt, error)
}

// Scheduler runs the demo lifecycle jobs
type Scheduler struct {
	store    Store
	exporter Exporter
	notifier notify.Notifier
	locker   lock.Locker
	cfg      Config
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
	now      func() time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLocker sets the run lock. The default is an in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

// WithMetrics records job metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// NewScheduler creates a scheduler
func NewScheduler(store Store, exporter Exporter, notifier notify.Notifier, cfg Config, logger logrus.FieldLogger, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	if cfg.WarningWindowDays < 0 {
		cfg.WarningWindowDays = def.WarningWindowDays
	}
	if cfg.DemoReportLimit <= 0 {
		cfg.DemoReportLimit = def.DemoReportLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}

	s := &Scheduler{
		store:    store,
		exporter: exporter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	return s
}

// Config returns the effective configuration
func (s *Scheduler) Config() Config {
	return s.cfg
}

// ExpiresAt returns the moment the user's retention window ends
func (s *Scheduler) ExpiresAt(user *auth.User) time.Time {
	return user.CreatedAt.Add(s.cfg.retention())
}

// IsDemoUserExpired reports whether a demo user is past retention. It is
// always false for other roles.
func (s *Scheduler) IsDemoUserExpired(user *auth.User) bool {
	return user.IsDemo() && s.now().After(s.ExpiresAt(user))
}

// DaysUntilExpiration returns the whole days left, rounded up, or 0 once expired
func (s *Scheduler) DaysUntilExpiration(user *auth.User) int {
	left := s.ExpiresAt(user).Sub(s.now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// State classifies a demo user. Other roles are always active.
func (s *Scheduler) State(user *auth.User) State {
	if !user.IsDemo() {
		return StateActive
	}

	now := s.now()
	expiresAt := s.ExpiresAt(user)
	if now.After(expiresAt) {
		return StateExpired
	}
	if expiresAt.Sub(now) <= s.cfg.warningWindow() && user.ReportCount > 0 {
		return StateWarning
	}
	return StateActive
}

// GetExpiredDemoUsers returns active demo users past retention
func (s *Scheduler) GetExpiredDemoUsers(ctx context.Context) ([]*auth.User, error) {
	return s.activeDemoUsersIn(ctx, StateExpired)
}

// GetUsersNeedingWarning returns active demo users in the warning window
func (s *Scheduler) GetUsersNeedingWarning(ctx context.Context) ([]*auth.User, error) {
	return s.activeDemoUsersIn(ctx, StateWarning)
}

func (s *Scheduler) activeDemoUsersIn(ctx context.Context, state State) ([]*auth.User, error) {
	users, err := s.store.ListUsersByRole(ctx, auth.RoleDemo)
	if err != nil {
		return nil, fmt.Errorf("failed to list demo users: %w", err)
	}

	var out []*auth.User
	for _, u := range users {
		if u.IsActive && s.State(u) == state {
			out = append(out, u)
		}
	}
	return out, nil
}

// GetCleanupStats aggregates the demo population without side effects
func (s *Scheduler) GetCleanupStats(ctx context.Context) (*CleanupStats, error) {
	users, err := s.store.ListUsersByRole(ctx, auth.RoleDemo)
	if err != nil {
		return nil, fmt.Errorf("failed to list demo users: %w", err)
	}
	reports, err := s.store.CountCasesByCreatorRole(ctx, auth.RoleDemo)
	if err != nil {
		return nil, fmt.Errorf("failed to count demo reports: %w", err)
	}

	stats := &CleanupStats{
		TotalDemoUsers:   len(users),
		TotalDemoReports: reports,
	}
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		switch s.State(u) {
		case StateExpired:
			stats.ExpiredUsers++
		case StateWarning:
			stats.UsersNeedingWarning++
			stats.ActiveDemoUsers++
		default:
			stats.ActiveDemoUsers++
		}
	}

	s.metrics.SetDemoUsers(string(StateActive), stats.ActiveDemoUsers)
	s.metrics.SetDemoUsers(string(StateWarning), stats.UsersNeedingWarning)
	s.metrics.SetDemoUsers(string(StateExpired), stats.ExpiredUsers)
	return stats, nil
}

// runLock is a held run lock that is refreshed until released
type runLock struct {
	lease lock.Lease
	stop  func()
}

// acquire takes the named run lock and keeps it alive for the whole run, so
// LockTTL only bounds how long a crashed holder blocks the next run.
func (s *Scheduler) acquire(ctx context.Context, name string, logger logrus.FieldLogger) (*runLock, error) {
	lease, err := s.locker.Acquire(ctx, name, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrLockHeld) {
		return nil, ErrCleanupInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s lock: %w", name, err)
	}

	stop := lock.KeepAlive(ctx, lease, s.cfg.LockTTL, func(err error) {
		logger.WithError(err).WithField("lock", name).Error("Failed to refresh run lock")
	})
	return &runLock{lease: lease, stop: stop}, nil
}

func (s *Scheduler) release(held *runLock, name string, logger logrus.FieldLogger) {
	held.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := held.lease.Release(ctx); err != nil {
		logger.WithError(err).WithField("lock", name).Warn("Failed to release run lock")
	}
}

func newRunID() string {
	return uuid.NewString()
}
