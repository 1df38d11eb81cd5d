// Package rbac implements the permission gate of the evalhub access core.
//
// # Overview
//
// The gate answers one question: may this user perform this action on this
// module, optionally inside this organization? Evaluation is a pure function
// of the user record, the resolved organization and the target, so it can be
// tested without any storage.
//
// # Rules
//
// developer and admin roles bypass module and organization checks. Editing
// prompts and report configuration (ActionEditPrompts) is reserved for
// developers and is checked after module access.
//
// org_admin and customer require the target module to be assigned to the user.
// When a target organization is given it must equal the user's organization
// and that organization must be active.
//
// demo requires the target module to be assigned. Demo users never belong to
// an organization, so organization checks do not apply to module targets.
// EvaluateCase still keeps them away from organization-owned cases.
//
// # Deny reasons
//
//	ReasonModuleNotAssigned    - module not in the user's assigned modules
//	ReasonOrganizationMismatch - target belongs to another tenant
//	ReasonOrganizationInactive - the user's organization is deactivated
//	ReasonInsufficientRole     - role cannot perform the action at all
//
// # Usage Example
//
//	gate := rbac.NewGate(registry)
//	decision, err := gate.Check(ctx, user, rbac.Target{
//		Module:         auth.ModuleK12,
//		OrganizationID: &orgID,
//		Action:         rbac.ActionCreateReport,
//	})
//	if err != nil {
//		return err // organization lookup failed
//	}
//	if err := decision.Err(); err != nil {
//		return err // *rbac.PermissionDeniedError
//	}
//
// # HTTP Middleware
//
// No binary in this module serves HTTP. An API server mounts the gate behind
// its authentication layer, which must put the user in the request context
// with contextkeys.WithUser. Permission is checked before the demo quota so a
// denied request never consumes a report:
//
//	perms := rbac.NewMiddleware(rbac.NewGate(store), logger)
//	quotas := quota.NewMiddleware(enforcer, logger)
//
//	r := mux.NewRouter()
//	api := r.PathPrefix("/api").Subrouter()
//	api.Use(authenticate) // sets contextkeys.WithUser
//
//	api.Handle("/modules/{module}/reports",
//		perms.RequireModule(rbac.ActionCreateReport)(quotas.EnforceReportQuota(createReport)),
//	).Methods(http.MethodPost)
//	api.Handle("/modules/{module}/orgs/{orgID}/reports",
//		perms.RequireModule(rbac.ActionView)(listReports),
//	).Methods(http.MethodGet)
//	api.Handle("/prompts", perms.RequirePromptEditor(editPrompts)).Methods(http.MethodPut)
package rbac
