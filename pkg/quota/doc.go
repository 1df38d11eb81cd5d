// Package quota enforces the report ceiling of demo accounts.
//
// # Overview
//
// Demo users may create DemoReportLimit reports. The limit is a platform
// setting; the MaxReports value stored on the user is legacy and never read
// for demo accounting. Every other role is unlimited.
//
// # Limit Status
//
// For the default limit of 5 and threshold of 4:
//
//	count  canCreate  isNearLimit  shouldPrompt
//	0..3   true       false        false
//	4      true       true         true
//	5      false      true         false
//
// The upgrade prompt is shown before the blocking report, not after it.
//
// # Atomic Increment
//
// IncrementOnCreate never reads the counter and then writes it. It delegates
// to storage.ReportCounter.IncrementReportCount, a single conditional update,
// so concurrent requests for the same user cannot push the count past the
// limit:
//
//	count, err := enforcer.IncrementOnCreate(ctx, user.ID)
//	if quota.IsQuotaExceeded(err) {
//		prompt := enforcer.GetUpgradePrompt(user)
//		// render the prompt instead of a generic failure
//	}
//
// # HTTP Middleware
//
// No binary in this module serves HTTP. An API server wraps report creation
// routes after authentication and after the rbac check, so a request that is
// denied permission never reserves a slot:
//
//	quotas := quota.NewMiddleware(quota.NewEnforcer(store, quota.DefaultLimits(), metrics, logger), logger)
//
//	api.Handle("/modules/{module}/reports",
//		perms.RequireModule(rbac.ActionCreateReport)(quotas.EnforceReportQuota(createReport)),
//	).Methods(http.MethodPost)
//
// Demo responses carry RemainingHeader, and UpgradePromptHeader once the
// account is near its limit.
//
// # Related Packages
//
//   - pkg/storage: ReportCounter, the atomic primitive
//   - pkg/lifecycle: the other writer of demo accounts
package quota
