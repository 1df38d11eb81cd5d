package orgs

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRegistry memoizes organization lookups. Organization metadata is
// read-mostly, so entries are served until they expire.
type CachedRegistry struct {
	src   Source
	cache *lru.LRU[int64, *Organization]
}

// NewCachedRegistry wraps src with an expiring LRU of size entries
func NewCachedRegistry(src Source, size int, ttl time.Duration) *CachedRegistry {
	if size < 1 {
		size = 1
	}
	return &CachedRegistry{
		src:   src,
		cache: lru.NewLRU[int64, *Organization](size, nil, ttl),
	}
}

// GetOrganization returns a copy of the cached organization, loading it on miss.
// Errors are not cached.
func (r *CachedRegistry) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	if org, ok := r.cache.Get(id); ok {
		return org.Clone(), nil
	}

	org, err := r.src.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Add(id, org.Clone())
	return org, nil
}

// CheckSeatLimit uses the cached organization but always counts members live
func (r *CachedRegistry) CheckSeatLimit(ctx context.Context, orgID int64) error {
	org, err := r.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	return checkSeats(ctx, r.src, org)
}

// Invalidate drops a cached organization
func (r *CachedRegistry) Invalidate(id int64) {
	r.cache.Remove(id)
}

// Len returns the number of cached organizations
func (r *CachedRegistry) Len() int {
	return r.cache.Len()
}
