package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/evalhub/pkg/orgs"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

// GetOrganization implements storage.OrganizationReader
func (s *Store) GetOrganization(ctx context.Context, id int64) (org *orgs.Organization, err error) {
	ctx, span := startSpan(ctx, "SELECT", "organizations")
	defer func() { err = endSpan(span, err) }()

	query := `
		SELECT id, name, COALESCE(slug, ''), assigned_modules, max_users, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	var (
		o       orgs.Organization
		modules []string
	)
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.Slug, pq.Array(&modules), &o.MaxUsers, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	o.AssignedModules = stringsToModules(modules)
	return &o, nil
}

// CountActiveMembers implements storage.OrganizationReader
func (s *Store) CountActiveMembers(ctx context.Context, orgID int64) (count int, err error) {
	ctx, span := startSpan(ctx, "SELECT", "users")
	defer func() { err = endSpan(span, err) }()

	query := `SELECT COUNT(*) FROM users WHERE organization_id = $1 AND is_active`
	if err = s.db.QueryRowContext(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// CreateOrganization implements storage.OrganizationWriter
func (s *Store) CreateOrganization(ctx context.Context, org *orgs.Organization) (err error) {
	if err := org.Validate(); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "INSERT", "organizations")
	defer func() { err = endSpan(span, err) }()

	var slug sql.NullString
	if org.Slug != "" {
		slug = sql.NullString{String: org.Slug, Valid: true}
	}

	query := `
		INSERT INTO organizations (name, slug, assigned_modules, max_users, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		org.Name,
		slug,
		pq.Array(modulesToStrings(org.AssignedModules)),
		org.MaxUsers,
		org.IsActive,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("organization %q: %w", org.Slug, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}
