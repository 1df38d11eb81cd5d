package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role represents a platform role
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
	RoleOrgAdmin  Role = "org_admin"
	RoleCustomer  Role = "customer"
	RoleDemo      Role = "demo"
)

// Roles returns every valid role
func Roles() []Role {
	return []Role{RoleDeveloper, RoleAdmin, RoleOrgAdmin, RoleCustomer, RoleDemo}
}

// ParseRole converts a stored or submitted value into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleDeveloper, RoleAdmin, RoleOrgAdmin, RoleCustomer, RoleDemo:
		return true
	}
	return false
}

// IsPlatformWide reports whether the role bypasses module and organization checks
func (r Role) IsPlatformWide() bool {
	return r == RoleDeveloper || r == RoleAdmin
}

// IsOrgScoped reports whether the role is bound to a single organization
func (r Role) IsOrgScoped() bool {
	return r == RoleOrgAdmin || r == RoleCustomer
}

// Module represents a product feature area
type Module string

const (
	ModuleK12           Module = "k12"
	ModulePostSecondary Module = "post_secondary"
	ModuleTutoring      Module = "tutoring"
)

// Modules returns every valid module
func Modules() []Module {
	return []Module{ModuleK12, ModulePostSecondary, ModuleTutoring}
}

// ParseModule converts a stored or submitted value into a Module
func ParseModule(s string) (Module, error) {
	m := Module(strings.TrimSpace(s))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidModule, s)
	}
	return m, nil
}

// Valid reports whether m is one of the known modules
func (m Module) Valid() bool {
	switch m {
	case ModuleK12, ModulePostSecondary, ModuleTutoring:
		return true
	}
	return false
}

// ParseModules parses a list of module tags, dropping duplicates
func ParseModules(values []string) ([]Module, error) {
	modules := make([]Module, 0, len(values))
	for _, v := range values {
		m, err := ParseModule(v)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(modules, m) {
			modules = append(modules, m)
		}
	}
	return modules, nil
}

// UnlimitedReports is the MaxReports value stored for every non-demo role
const UnlimitedReports = -1

// ExpiredPasswordSentinel replaces the password hash of an anonymized account.
// It is not a valid hash, so no password can ever match it.
const ExpiredPasswordSentinel = "ACCOUNT_EXPIRED"

// User represents a platform account
type User struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email,omitempty"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	OrganizationID    *int64     `json:"organization_id,omitempty"`
	AssignedModules   []Module   `json:"assigned_modules"`
	ReportCount       int        `json:"report_count"`
	MaxReports        int        `json:"max_reports"` // legacy; ignored for demo accounting
	IsActive          bool       `json:"is_active"`
	ResetToken        *string    `json:"-"`
	VerificationToken *string    `json:"-"`
	LastWarnedAt      *time.Time `json:"last_warned_at,omitempty"`
	AnonymizedAt      *time.Time `json:"anonymized_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
}

// IsDemo reports whether the user is a demo account
func (u *User) IsDemo() bool {
	return u.Role == RoleDemo
}

// HasModule reports whether m is in the user's assigned modules
func (u *User) HasModule(m Module) bool {
	return slices.Contains(u.AssignedModules, m)
}

// InOrganization reports whether the user belongs to orgID
func (u *User) InOrganization(orgID int64) bool {
	return u.OrganizationID != nil && *u.OrganizationID == orgID
}

// Validate checks the invariants every persisted user must hold
func (u *User) Validate() error {
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}
	for _, m := range u.AssignedModules {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidModule, m)
		}
	}
	if u.ReportCount < 0 {
		return fmt.Errorf("%w: report count %d", ErrInvalidUser, u.ReportCount)
	}
	switch {
	case u.Role == RoleDemo && u.OrganizationID != nil:
		return fmt.Errorf("%w: demo users cannot belong to an organization", ErrInvalidUser)
	case u.Role.IsOrgScoped() && u.OrganizationID == nil:
		return fmt.Errorf("%w: role %s requires an organization", ErrInvalidUser, u.Role)
	}
	return nil
}

// AnonymizedEmail returns the placeholder address for an anonymized user
func AnonymizedEmail(userID int64) string {
	return fmt.Sprintf("deleted_%d@demo.expired", userID)
}

// AnonymizedUsername returns the placeholder username for an anonymized user
func AnonymizedUsername(userID int64) string {
	return fmt.Sprintf("deleted_%d", userID)
}

// Anonymize moves the user into the anonymized state. The row itself is
// retained so cases created by the user keep a valid owner.
func (u *User) Anonymize(now time.Time) {
	u.Email = AnonymizedEmail(u.ID)
	u.Username = AnonymizedUsername(u.ID)
	u.PasswordHash = ExpiredPasswordSentinel
	u.ResetToken = nil
	u.VerificationToken = nil
	u.IsActive = false
	at := now
	u.AnonymizedAt = &at
}

// IsAnonymized reports whether Anonymize has been applied
func (u *User) IsAnonymized() bool {
	return u.AnonymizedAt != nil
}

// HasPII reports whether any readable identifying field remains
func (u *User) HasPII() bool {
	return u.Email != AnonymizedEmail(u.ID) ||
		u.Username != AnonymizedUsername(u.ID) ||
		u.PasswordHash != ExpiredPasswordSentinel ||
		u.ResetToken != nil ||
		u.VerificationToken != nil
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	c := *u
	c.AssignedModules = slices.Clone(u.AssignedModules)
	if u.OrganizationID != nil {
		id := *u.OrganizationID
		c.OrganizationID = &id
	}
	c.ResetToken = clonePtr(u.ResetToken)
	c.VerificationToken = clonePtr(u.VerificationToken)
	c.LastWarnedAt = clonePtr(u.LastWarnedAt)
	c.AnonymizedAt = clonePtr(u.AnonymizedAt)
	c.LastLoginAt = clonePtr(u.LastLoginAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
