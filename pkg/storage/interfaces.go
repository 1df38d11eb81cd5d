package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/cases"
	"github.com/platinummonkey/evalhub/pkg/orgs"
)

var (
	// ErrNotFound is returned when a referenced user, organization or case is absent
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned when creating a record whose id is taken
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrNotActive is returned by PurgeUser when the user was already deactivated
	ErrNotActive = errors.New("storage: user not active")

	// ErrUnexportedCases is returned by PurgeUser when the user owns cases that
	// are not in the exported set. Nothing is changed, so a later run can retry.
	ErrUnexportedCases = errors.New("storage: user has cases outside the export")
)

// Unlimited disables the ceiling of IncrementReportCount
const Unlimited = -1

// UserReader provides read access to users
type UserReader interface {
	GetUser(ctx context.Context, id int64) (*auth.User, error)
	ListUsersByRole(ctx context.Context, role auth.Role) ([]*auth.User, error)
}

// UserWriter creates users. Implementations call auth.User.Validate.
type UserWriter interface {
	CreateUser(ctx context.Context, user *auth.User) error
}

// ReportCounter owns the report counter of a user
type ReportCounter interface {
	// IncrementReportCount adds one to the counter iff it is below limit and
	// returns the new value. ok is false when the limit was already reached.
	// A limit of Unlimited always increments.
	IncrementReportCount(ctx context.Context, userID int64, limit int) (count int, ok bool, err error)

	// ResetReportCount sets the counter back to zero
	ResetReportCount(ctx context.Context, userID int64) error
}

// WarningMarker records expiration warnings so each window is notified once
type WarningMarker interface {
	// ClaimWarning sets last_warned_at to now iff it is unset or earlier than
	// windowStart. claimed is false when another run already warned the user
	// inside this window.
	ClaimWarning(ctx context.Context, userID int64, windowStart, now time.Time) (claimed bool, err error)

	// RestoreWarning puts back the marker value observed before a failed claim
	RestoreWarning(ctx context.Context, userID int64, previous *time.Time) error
}

// UserPurger performs the destructive step of demo cleanup
type UserPurger interface {
	// PurgeUser deletes the cases in exported and stores the anonymized
	// record, atomically, iff the stored user is still active and owns no
	// case outside exported.
	PurgeUser(ctx context.Context, anonymized *auth.User, exported []int64) (casesDeleted int, err error)
}

// OrganizationReader provides read access to organizations
type OrganizationReader interface {
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
	CountActiveMembers(ctx context.Context, orgID int64) (int, error)
}

// OrganizationWriter creates organizations
type OrganizationWriter interface {
	CreateOrganization(ctx context.Context, org *orgs.Organization) error
}

// CaseReader provides read access to assessment cases
type CaseReader interface {
	ListCasesByCreator(ctx context.Context, userID int64) ([]*cases.Case, error)
	CountCasesByCreatorRole(ctx context.Context, role auth.Role) (int, error)
}

// CaseWriter creates assessment cases
type CaseWriter interface {
	CreateCase(ctx context.Context, c *cases.Case) error
}

// HealthChecker reports backend availability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is the full persistence surface consumed by the core
type Store interface {
	UserReader
	UserWriter
	ReportCounter
	WarningMarker
	UserPurger
	OrganizationReader
	OrganizationWriter
	CaseReader
	CaseWriter
	HealthChecker
}

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory" or "postgres"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	PostgresMaxLifetime time.Duration `yaml:"postgres_max_lifetime"`

	// Redis config (run lock)
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Organization registry cache
	OrgCacheSize int           `yaml:"org_cache_size"`
	OrgCacheTTL  time.Duration `yaml:"org_cache_ttl"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:                "postgres",
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 30 * time.Minute,
		RedisDB:             0,
		RedisMaxRetries:     3,
		RedisPoolSize:       10,
		OrgCacheSize:        1024,
		OrgCacheTTL:         5 * time.Minute,
	}
}
