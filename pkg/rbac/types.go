package rbac

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/evalhub/pkg/auth"
)

// Action represents an operation requested on a module
type Action string

const (
	ActionView         Action = "view"
	ActionCreateReport Action = "create_report"
	ActionEdit         Action = "edit"
	ActionEditPrompts  Action = "edit_prompts"
)

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreateReport, ActionEdit, ActionEditPrompts:
		return true
	}
	return false
}

// DenyReason is a machine-checkable explanation of a denial
type DenyReason string

const (
	ReasonModuleNotAssigned    DenyReason = "module_not_assigned"
	ReasonOrganizationMismatch DenyReason = "organization_mismatch"
	ReasonOrganizationInactive DenyReason = "organization_inactive"
	ReasonInsufficientRole     DenyReason = "insufficient_role"
)

// Target describes what a user is trying to reach
type Target struct {
	Module         auth.Module `json:"module"`
	OrganizationID *int64      `json:"organization_id,omitempty"`
	Action         Action      `json:"action"`
}

// Decision is the result of an evaluation
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Allow returns an allowing decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with reason
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err returns nil when allowed and a *PermissionDeniedError otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &PermissionDeniedError{Reason: d.Reason}
}

// ErrPermissionDenied is wrapped by every PermissionDeniedError
var ErrPermissionDenied = errors.New("permission denied")

// PermissionDeniedError carries the deny reason for UI messaging
type PermissionDeniedError struct {
	Reason DenyReason
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// IsPermissionDenied checks if an error is a permission denial
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// DenyReasonOf extracts the reason from a permission denial, or ""
func DenyReasonOf(err error) DenyReason {
	var target *PermissionDeniedError
	if errors.As(err, &target) {
		return target.Reason
	}
	return ""
}
