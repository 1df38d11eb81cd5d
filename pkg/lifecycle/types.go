package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCleanupInProgress is returned when another run holds the lock
var ErrCleanupInProgress = errors.New("lifecycle: another run is in progress")

// State is the derived lifecycle state of a demo user
type State string

const (
	StateActive  State = "active"
	StateWarning State = "warning"
	StateExpired State = "expired"
)

// Stage identifies where a per-user failure happened
type Stage string

const (
	StageExport Stage = "export"
	StagePurge  Stage = "purge"
	StageClaim  Stage = "claim"
	StageNotify Stage = "notify"
)

// CleanupError is a per-user failure recorded by a run
type CleanupError struct {
	UserID int64
	Stage  Stage
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("user %d: %s failed: %v", e.UserID, e.Stage, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error message as a string
func (e *CleanupError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UserID int64  `json:"user_id"`
		Stage  Stage  `json:"stage"`
		Error  string `json:"error"`
	}{e.UserID, e.Stage, e.Err.Error()})
}

// CleanupResult summarizes CleanupExpiredDemoUsers
type CleanupResult struct {
	RunID            string          `json:"run_id"`
	DryRun           bool            `json:"dry_run"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	UsersProcessed   int             `json:"users_processed"`
	UsersDeactivated int             `json:"users_deactivated"`
	UsersSkipped     int             `json:"users_skipped"`
	ReportsDeleted   int             `json:"reports_deleted"`
	Errors           []*CleanupError `json:"errors"`
}

// WarningResult summarizes SendExpirationWarnings
type WarningResult struct {
	RunID         string          `json:"run_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	UsersEligible int             `json:"users_eligible"`
	UsersWarned   int             `json:"users_warned"`
	UsersSkipped  int             `json:"users_skipped"`
	Errors        []*CleanupError `json:"errors"`
}

// CleanupStats is a read-only view of the demo population
type CleanupStats struct {
	TotalDemoUsers      int `json:"total_demo_users"`
	ActiveDemoUsers     int `json:"active_demo_users"`
	UsersNeedingWarning int `json:"users_needing_warning"`
	ExpiredUsers        int `json:"expired_users"`
	TotalDemoReports    int `json:"total_demo_reports"`
}

// Config holds the lifecycle windows
type Config struct {
	RetentionDays     int
	WarningWindowDays int
	DemoReportLimit   int
	Workers           int
	LockTTL           time.Duration // refreshed every LockTTL/3 while a run holds the lock
}

// DefaultConfig returns the platform defaults
func DefaultConfig() Config {
	return Config{
		RetentionDays:     30,
		WarningWindowDays: 7,
		DemoReportLimit:   5,
		Workers:           4,
		LockTTL:           30 * time.Minute,
	}
}

func (c Config) retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c Config) warningWindow() time.Duration {
	return time.Duration(c.WarningWindowDays) * 24 * time.Hour
}
