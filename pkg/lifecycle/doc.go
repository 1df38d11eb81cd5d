// Package lifecycle classifies demo accounts and runs the warning and cleanup
// jobs that retire them.
//
// # States
//
// Each demo user is in one derived state, computed from CreatedAt, the
// retention window and the report count:
//
//	Active   now <= expiresAt, outside the warning window (or no reports yet)
//	Warning  expiresAt - now <= warning window, not expired, reportCount > 0
//	Expired  now > expiresAt
//
// where expiresAt = CreatedAt + RetentionDays.
//
// # Warnings
//
// SendExpirationWarnings notifies users in the Warning state. Each send is
// gated by storage.WarningMarker.ClaimWarning, so a user is notified at most
// once per warning window however often the job runs. When the notifier
// fails the marker is restored and the next run retries.
//
// # Cleanup
//
// CleanupExpiredDemoUsers processes active, expired demo users:
//
//  1. Export the user's cases through the exporter (dry runs only build the snapshot)
//  2. Delete the cases and write the anonymized user, in one storage call
//
// A failure for one user is recorded in the result and the batch continues.
// Purged users are inactive, so a second run processes nobody. A dry run
// reports the same counts a real run over the same cohort would produce.
//
// Both jobs hold a run lock; a concurrent run gets ErrCleanupInProgress.
package lifecycle
