// Package storage defines the persistence boundary of the evalhub access core.
//
// # Overview
//
// The core never talks to a database directly. It consumes the interfaces in
// this package, which are implemented by pkg/storage/memory (tests and
// single-node development) and pkg/storage/postgres (production).
//
// # Architecture
//
// The storage layer uses interface segregation so each component asks only for
// what it uses:
//
//   - UserReader: GetUser, ListUsersByRole
//   - UserWriter: CreateUser
//   - ReportCounter: IncrementReportCount, ResetReportCount
//   - WarningMarker: ClaimWarning, RestoreWarning
//   - UserPurger: PurgeUser
//   - OrganizationReader / OrganizationWriter
//   - CaseReader / CaseWriter
//   - HealthChecker
//
// These compose into the Store interface.
//
// # Atomic report counter
//
// IncrementReportCount is the single primitive the quota enforcer relies on:
//
//	count, ok, err := store.IncrementReportCount(ctx, userID, 5)
//	// ok == false: the counter was already at 5 and nothing changed
//
// Implementations must perform the comparison and the increment as one
// indivisible step. A read followed by a separate write is not acceptable,
// because two concurrent callers could both observe count 4 and both write 5.
//
// # Purging users
//
// PurgeUser deletes the exported cases and writes the anonymized record in one
// transaction, and only while the stored user is still active. A repeated purge
// of the same user is a no-op reported through ErrNotActive. A case created
// after the export was taken aborts the purge with ErrUnexportedCases:
//
//	deleted, err := store.PurgeUser(ctx, anonymized, snapshotCaseIDs)
//	if errors.Is(err, storage.ErrUnexportedCases) {
//		// user stays active; the next run exports again
//	}
package storage
