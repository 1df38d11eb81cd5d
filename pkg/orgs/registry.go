package orgs

import (
	"context"
	"fmt"
)

// Source is the slice of storage the registry reads from
type Source interface {
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	CountActiveMembers(ctx context.Context, orgID int64) (int, error)
}

// Registry resolves organizations for the permission gate
type Registry interface {
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	CheckSeatLimit(ctx context.Context, orgID int64) error
}

// StoreRegistry is a Registry reading straight from storage
type StoreRegistry struct {
	src Source
}

// NewStoreRegistry creates a registry over src
func NewStoreRegistry(src Source) *StoreRegistry {
	return &StoreRegistry{src: src}
}

// GetOrganization returns the organization or the storage error unchanged
func (r *StoreRegistry) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return r.src.GetOrganization(ctx, id)
}

// CheckSeatLimit returns a *SeatLimitError when the organization is full
func (r *StoreRegistry) CheckSeatLimit(ctx context.Context, orgID int64) error {
	org, err := r.src.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	return checkSeats(ctx, r.src, org)
}

func checkSeats(ctx context.Context, src Source, org *Organization) error {
	if org.MaxUsers == UnlimitedSeats {
		return nil
	}

	count, err := src.CountActiveMembers(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}

	if count >= org.MaxUsers {
		return &SeatLimitError{
			OrgID:   org.ID,
			Current: count,
			Limit:   org.MaxUsers,
		}
	}

	return nil
}
