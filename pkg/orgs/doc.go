// Package orgs provides the tenant organization registry for the evalhub access core.
//
// # Overview
//
// Organizations own customers, org admins and assessment cases. The registry is a
// read model: it exposes the module entitlements, active flag and seat limit the
// permission gate needs, and nothing in this package mutates organizations
// beyond initial creation.
//
// # Usage Example
//
// Build a registry over a store and cache lookups:
//
//	reg := orgs.NewCachedRegistry(orgs.NewStoreRegistry(store), 1024, 5*time.Minute)
//	org, err := reg.GetOrganization(ctx, 42)
//
// Check the seat limit before adding a member:
//
//	if err := reg.CheckSeatLimit(ctx, 42); orgs.IsSeatLimitExceeded(err) {
//		// reject the invitation
//	}
//
// # Seat limits
//
// MaxUsers bounds the number of active members. UnlimitedSeats (-1) disables
// the bound. Anonymized users are inactive and do not occupy a seat.
package orgs
