package rbac

import (
	"context"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/cases"
	"github.com/platinummonkey/evalhub/pkg/orgs"
)

// Evaluate decides whether user may perform target.Action on target.Module.
// org is the resolved organization referenced by target.OrganizationID, or nil.
func Evaluate(user *auth.User, org *orgs.Organization, target Target) Decision {
	if user == nil || !target.Action.Valid() {
		return Deny(ReasonInsufficientRole)
	}

	switch user.Role {
	case auth.RoleDeveloper:
		return Allow()

	case auth.RoleAdmin:
		return requirePromptEditor(user, target)

	case auth.RoleOrgAdmin, auth.RoleCustomer:
		if !user.HasModule(target.Module) {
			return Deny(ReasonModuleNotAssigned)
		}
		if target.OrganizationID != nil {
			if !user.InOrganization(*target.OrganizationID) {
				return Deny(ReasonOrganizationMismatch)
			}
			// an unresolved organization cannot be proven active
			if org == nil || org.ID != *target.OrganizationID || !org.IsActive {
				return Deny(ReasonOrganizationInactive)
			}
		}
		return requirePromptEditor(user, target)

	case auth.RoleDemo:
		// demo users have no organization; resource isolation is enforced
		// by EvaluateCase
		if !user.HasModule(target.Module) {
			return Deny(ReasonModuleNotAssigned)
		}
		return requirePromptEditor(user, target)
	}

	return Deny(ReasonInsufficientRole)
}

func requirePromptEditor(user *auth.User, target Target) Decision {
	if target.Action == ActionEditPrompts && user.Role != auth.RoleDeveloper {
		return Deny(ReasonInsufficientRole)
	}
	return Allow()
}

// EvaluateCase applies Evaluate to a concrete case and adds ownership rules:
// demo users reach only cases they created, org-scoped users never reach
// cases outside an organization, and customers edit only their own cases.
func EvaluateCase(user *auth.User, org *orgs.Organization, c *cases.Case, action Action) Decision {
	if user == nil || c == nil {
		return Deny(ReasonInsufficientRole)
	}

	target := Target{
		Module:         c.ModuleType,
		OrganizationID: c.OrganizationID,
		Action:         action,
	}

	switch {
	case user.Role.IsPlatformWide():
		return Evaluate(user, org, target)

	case user.IsDemo():
		if c.OwnedByOrganization() || c.CreatedByUserID != user.ID {
			return Deny(ReasonOrganizationMismatch)
		}
		return Evaluate(user, nil, target)

	case user.Role.IsOrgScoped():
		if !c.OwnedByOrganization() {
			return Deny(ReasonOrganizationMismatch)
		}
		d := Evaluate(user, org, target)
		if !d.Allowed {
			return d
		}
		if action == ActionEdit && user.Role == auth.RoleCustomer && !ownsCase(user, c) {
			return Deny(ReasonInsufficientRole)
		}
		return d
	}

	return Deny(ReasonInsufficientRole)
}

func ownsCase(user *auth.User, c *cases.Case) bool {
	if c.CreatedByUserID == user.ID {
		return true
	}
	return c.CustomerID != nil && *c.CustomerID == user.ID
}

// OrganizationResolver is the part of orgs.Registry the gate needs
type OrganizationResolver interface {
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
}

// Gate resolves organizations and evaluates permissions
type Gate struct {
	orgs OrganizationResolver
}

// NewGate creates a gate backed by an organization resolver
func NewGate(resolver OrganizationResolver) *Gate {
	return &Gate{orgs: resolver}
}

// Check resolves the target organization and evaluates. A lookup error, such
// as storage.ErrNotFound, is returned unchanged and no decision is made.
func (g *Gate) Check(ctx context.Context, user *auth.User, target Target) (Decision, error) {
	org, err := g.resolve(ctx, user, target.OrganizationID)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(user, org, target), nil
}

// CheckCase resolves the case organization and evaluates with EvaluateCase
func (g *Gate) CheckCase(ctx context.Context, user *auth.User, c *cases.Case, action Action) (Decision, error) {
	if c == nil {
		return Deny(ReasonInsufficientRole), nil
	}
	org, err := g.resolve(ctx, user, c.OrganizationID)
	if err != nil {
		return Decision{}, err
	}
	return EvaluateCase(user, org, c, action), nil
}

// Authorize is Check folded into a single error
func (g *Gate) Authorize(ctx context.Context, user *auth.User, target Target) error {
	d, err := g.Check(ctx, user, target)
	if err != nil {
		return err
	}
	return d.Err()
}

// CanEditPrompts reports whether user may edit prompts and report configuration
func CanEditPrompts(user *auth.User) bool {
	return user != nil && user.Role == auth.RoleDeveloper
}

// resolve only loads organizations the decision depends on, so a cross-tenant
// probe is answered with a mismatch rather than leaking existence.
func (g *Gate) resolve(ctx context.Context, user *auth.User, orgID *int64) (*orgs.Organization, error) {
	if user == nil || orgID == nil || g.orgs == nil {
		return nil, nil
	}
	if !user.Role.IsOrgScoped() || !user.InOrganization(*orgID) {
		return nil, nil
	}
	return g.orgs.GetOrganization(ctx, *orgID)
}
