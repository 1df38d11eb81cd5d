// Package memory provides an in-process implementation of storage.Store.
//
// Every method returns copies so callers can never mutate stored state
// without going through the store.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/cases"
	"github.com/platinummonkey/evalhub/pkg/orgs"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// Store is a mutex guarded storage.Store
type Store struct {
	mu     sync.RWMutex
	users  map[int64]*auth.User
	orgs   map[int64]*orgs.Organization
	cases  map[int64]*cases.Case
	nextID int64
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		users:  make(map[int64]*auth.User),
		orgs:   make(map[int64]*orgs.Organization),
		cases:  make(map[int64]*cases.Case),
		nextID: 1,
		now:    time.Now,
	}
}

func (s *Store) allocID(id int64) int64 {
	if id == 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return id
}

// GetUser implements storage.UserReader
func (s *Store) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return u.Clone(), nil
}

// ListUsersByRole implements storage.UserReader, ordered by id
func (s *Store) ListUsersByRole(ctx context.Context, role auth.Role) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*auth.User
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *auth.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// CreateUser implements storage.UserWriter and assigns an id when unset
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID != 0 {
		if _, ok := s.users[user.ID]; ok {
			return fmt.Errorf("user %d: %w", user.ID, storage.ErrAlreadyExists)
		}
	}
	user.ID = s.allocID(user.ID)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = user.Clone()
	return nil
}

// IncrementReportCount implements storage.ReportCounter. The comparison and
// the write happen under the same lock.
func (s *Store) IncrementReportCount(ctx context.Context, userID int64, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, false, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if limit != storage.Unlimited && u.ReportCount >= limit {
		return u.ReportCount, false, nil
	}
	u.ReportCount++
	return u.ReportCount, true, nil
}

// ResetReportCount implements storage.ReportCounter
func (s *Store) ResetReportCount(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	u.ReportCount = 0
	return nil
}

// ClaimWarning implements storage.WarningMarker
func (s *Store) ClaimWarning(ctx context.Context, userID int64, windowStart, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if u.LastWarnedAt != nil && !u.LastWarnedAt.Before(windowStart) {
		return false, nil
	}
	at := now
	u.LastWarnedAt = &at
	return true, nil
}

// RestoreWarning implements storage.WarningMarker
func (s *Store) RestoreWarning(ctx context.Context, userID int64, previous *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if previous == nil {
		u.LastWarnedAt = nil
	} else {
		at := *previous
		u.LastWarnedAt = &at
	}
	return nil
}

// PurgeUser implements storage.UserPurger
func (s *Store) PurgeUser(ctx context.Context, anonymized *auth.User, exported []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[anonymized.ID]
	if !ok {
		return 0, fmt.Errorf("user %d: %w", anonymized.ID, storage.ErrNotFound)
	}
	if !u.IsActive {
		return 0, fmt.Errorf("user %d: %w", anonymized.ID, storage.ErrNotActive)
	}

	var owned []int64
	for id, c := range s.cases {
		if c.CreatedByUserID != anonymized.ID {
			continue
		}
		if !slices.Contains(exported, id) {
			return 0, fmt.Errorf("user %d case %d: %w", anonymized.ID, id, storage.ErrUnexportedCases)
		}
		owned = append(owned, id)
	}

	for _, id := range owned {
		delete(s.cases, id)
	}
	s.users[anonymized.ID] = anonymized.Clone()
	return len(owned), nil
}

// GetOrganization implements storage.OrganizationReader
func (s *Store) GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %d: %w", id, storage.ErrNotFound)
	}
	return o.Clone(), nil
}

// CountActiveMembers implements storage.OrganizationReader
func (s *Store) CountActiveMembers(ctx context.Context, orgID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, u := range s.users {
		if u.IsActive && u.InOrganization(orgID) {
			n++
		}
	}
	return n, nil
}

// CreateOrganization implements storage.OrganizationWriter
func (s *Store) CreateOrganization(ctx context.Context, org *orgs.Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if org.ID != 0 {
		if _, ok := s.orgs[org.ID]; ok {
			return fmt.Errorf("organization %d: %w", org.ID, storage.ErrAlreadyExists)
		}
	}
	org.ID = s.allocID(org.ID)
	now := s.now()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now
	s.orgs[org.ID] = org.Clone()
	return nil
}

// ListCasesByCreator implements storage.CaseReader, ordered by id
func (s *Store) ListCasesByCreator(ctx context.Context, userID int64) ([]*cases.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*cases.Case
	for _, c := range s.cases {
		if c.CreatedByUserID == userID {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *cases.Case) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// CountCasesByCreatorRole implements storage.CaseReader
func (s *Store) CountCasesByCreatorRole(ctx context.Context, role auth.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.cases {
		if u, ok := s.users[c.CreatedByUserID]; ok && u.Role == role {
			n++
		}
	}
	return n, nil
}

// CreateCase implements storage.CaseWriter
func (s *Store) CreateCase(ctx context.Context, c *cases.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[c.CreatedByUserID]; !ok {
		return fmt.Errorf("user %d: %w", c.CreatedByUserID, storage.ErrNotFound)
	}
	if c.ID != 0 {
		if _, ok := s.cases[c.ID]; ok {
			return fmt.Errorf("case %d: %w", c.ID, storage.ErrAlreadyExists)
		}
	}
	c.ID = s.allocID(c.ID)
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.cases[c.ID] = c.Clone()
	return nil
}

// HealthCheck implements storage.HealthChecker
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}
