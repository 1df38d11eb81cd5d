// Package cases defines assessment cases, the resources reports are built from.
package cases

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/evalhub/pkg/auth"
)

// Status represents the progress of an assessment case
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Case represents an assessment case owned by an organization or, for demo
// users, by its creator alone
type Case struct {
	ID              int64           `json:"id"`
	DisplayName     string          `json:"display_name"`
	ModuleType      auth.Module     `json:"module_type"`
	OrganizationID  *int64          `json:"organization_id,omitempty"`
	CustomerID      *int64          `json:"customer_id,omitempty"`
	CreatedByUserID int64           `json:"created_by_user_id"`
	Status          Status          `json:"status"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OwnedByOrganization reports whether the case belongs to a tenant
func (c *Case) OwnedByOrganization() bool {
	return c.OrganizationID != nil
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Validate checks the record before it is persisted
func (c *Case) Validate() error {
	if !c.ModuleType.Valid() {
		return fmt.Errorf("%w: %q", auth.ErrInvalidModule, c.ModuleType)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("cases: invalid status %q", c.Status)
	}
	if c.CreatedByUserID == 0 {
		return fmt.Errorf("cases: creator is required")
	}
	return nil
}

// Clone returns a deep copy of the case
func (c *Case) Clone() *Case {
	cp := *c
	if c.OrganizationID != nil {
		id := *c.OrganizationID
		cp.OrganizationID = &id
	}
	if c.CustomerID != nil {
		id := *c.CustomerID
		cp.CustomerID = &id
	}
	cp.Payload = append(json.RawMessage(nil), c.Payload...)
	return &cp
}
