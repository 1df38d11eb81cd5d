// Package auth defines the identity records shared by the evalhub access core.
//
// # Overview
//
// Every operation in the core receives a resolved User supplied by the
// authentication layer. This package owns the shape of that record, the closed
// set of platform roles and product modules, and the anonymization transition
// applied to expired demo accounts.
//
// # Roles
//
//	RoleDeveloper - Full access, the only role allowed to edit prompts/configuration
//	RoleAdmin     - Full access to every tenant
//	RoleOrgAdmin  - Manages one organization, limited to its assigned modules
//	RoleCustomer  - Works inside one organization, limited to its assigned modules
//	RoleDemo      - Trial account, no organization, quota and time limited
//
// Role and Module values are validated on parse and on every store write:
//
//	role, err := auth.ParseRole("org_admin")
//	if errors.Is(err, auth.ErrInvalidRole) {
//		return err
//	}
//
// # Anonymization
//
// Expired demo users are never deleted. Anonymize scrubs identifying fields and
// deactivates the account so historical ownership records keep resolving:
//
//	user.Anonymize(time.Now())
//	user.Email    // deleted_42@demo.expired
//	user.HasPII() // false
//
// # Related Packages
//
//   - pkg/rbac: Permission evaluation over Role and Module
//   - pkg/quota: Demo report accounting
//   - pkg/lifecycle: Expiration and cleanup of demo users
package auth
