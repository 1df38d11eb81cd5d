// Package httputil provides the small set of HTTP helpers shared by the admin
// surface and the permission middleware.
//
// # Responses
//
// Every error body has the same shape:
//
//	{"error": "permission denied", "details": {"reason": "module_not_assigned"}}
//
// Helpers:
//
//	httputil.WriteJSON(w, http.StatusOK, stats)
//	httputil.WriteBadRequest(w, "invalid module")
//	httputil.WriteDetailedError(w, http.StatusForbidden, err, map[string]string{"reason": "x"})
//
// # Requests
//
//	dryRun, err := httputil.ParseQueryBool(r, "dry_run", true)
//	orgID, err := httputil.ParsePathInt64(r, "orgID")
//
// # Middleware
//
// Chain composes middleware in the order given:
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
