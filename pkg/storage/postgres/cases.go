package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/cases"
)

// ListCasesByCreator implements storage.CaseReader
func (s *Store) ListCasesByCreator(ctx context.Context, userID int64) (list []*cases.Case, err error) {
	ctx, span := startSpan(ctx, "SELECT", "assessment_cases")
	defer func() { err = endSpan(span, err) }()

	query := `
		SELECT id, display_name, module_type, organization_id, customer_id, created_by_user_id,
			status, payload, created_at, updated_at
		FROM assessment_cases
		WHERE created_by_user_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c          cases.Case
			module     string
			status     string
			orgID      sql.NullInt64
			customerID sql.NullInt64
			payload    []byte
		)
		if err := rows.Scan(
			&c.ID, &c.DisplayName, &module, &orgID, &customerID, &c.CreatedByUserID,
			&status, &payload, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		c.ModuleType = auth.Module(module)
		c.Status = cases.Status(status)
		c.OrganizationID = int64Ptr(orgID)
		c.CustomerID = int64Ptr(customerID)
		c.Payload = payload
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cases: %w", err)
	}
	return list, nil
}

// CountCasesByCreatorRole implements storage.CaseReader
func (s *Store) CountCasesByCreatorRole(ctx context.Context, role auth.Role) (count int, err error) {
	ctx, span := startSpan(ctx, "SELECT", "assessment_cases")
	defer func() { err = endSpan(span, err) }()

	query := `
		SELECT COUNT(*)
		FROM assessment_cases c
		JOIN users u ON c.created_by_user_id = u.id
		WHERE u.role = $1
	`
	if err = s.db.QueryRowContext(ctx, query, string(role)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

// CreateCase implements storage.CaseWriter
func (s *Store) CreateCase(ctx context.Context, c *cases.Case) (err error) {
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "INSERT", "assessment_cases")
	defer func() { err = endSpan(span, err) }()

	var payload any
	if len(c.Payload) > 0 {
		payload = []byte(c.Payload)
	}

	query := `
		INSERT INTO assessment_cases (display_name, module_type, organization_id, customer_id,
			created_by_user_id, status, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		c.DisplayName,
		string(c.ModuleType),
		nullInt64(c.OrganizationID),
		nullInt64(c.CustomerID),
		c.CreatedByUserID,
		string(c.Status),
		payload,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}
