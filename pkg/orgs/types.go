package orgs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/platinummonkey/evalhub/pkg/auth"
)

// UnlimitedSeats disables the member bound of an organization
const UnlimitedSeats = -1

// ErrInvalidOrganization is returned when an organization record fails validation
var ErrInvalidOrganization = errors.New("orgs: invalid organization")

// Organization represents a tenant
type Organization struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Slug            string        `json:"slug"`
	AssignedModules []auth.Module `json:"assigned_modules"`
	MaxUsers        int           `json:"max_users"`
	IsActive        bool          `json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// HasModule reports whether the organization is entitled to m
func (o *Organization) HasModule(m auth.Module) bool {
	return slices.Contains(o.AssignedModules, m)
}

// Validate checks the record before it is persisted
func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOrganization)
	}
	if o.MaxUsers < UnlimitedSeats {
		return fmt.Errorf("%w: max users %d", ErrInvalidOrganization, o.MaxUsers)
	}
	for _, m := range o.AssignedModules {
		if !m.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidOrganization, auth.ErrInvalidModule, m)
		}
	}
	return nil
}

// Clone returns a deep copy
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	c.AssignedModules = slices.Clone(o.AssignedModules)
	return &c
}

// SeatLimitError is returned when an organization has no free seat
type SeatLimitError struct {
	OrgID   int64
	Current int
	Limit   int
}

func (e *SeatLimitError) Error() string {
	return fmt.Sprintf("seat limit reached for organization %d (%d of %d)", e.OrgID, e.Current, e.Limit)
}

// IsSeatLimitExceeded checks if an error is a seat limit error
func IsSeatLimitExceeded(err error) bool {
	var target *SeatLimitError
	return errors.As(err, &target)
}
