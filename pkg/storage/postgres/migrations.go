package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema migrations in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) UNIQUE,
					assigned_modules TEXT[] NOT NULL DEFAULT '{}',
					max_users INT NOT NULL DEFAULT -1 CHECK (max_users >= -1),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					password_hash TEXT NOT NULL DEFAULT '',
					role VARCHAR(32) NOT NULL
						CHECK (role IN ('developer', 'admin', 'org_admin', 'customer', 'demo')),
					organization_id BIGINT REFERENCES organizations(id) ON DELETE RESTRICT,
					assigned_modules TEXT[] NOT NULL DEFAULT '{}',
					report_count INT NOT NULL DEFAULT 0 CHECK (report_count >= 0),
					max_reports INT NOT NULL DEFAULT -1,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					reset_token TEXT,
					verification_token TEXT,
					last_warned_at TIMESTAMPTZ,
					anonymized_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMPTZ,
					CHECK (role <> 'demo' OR organization_id IS NULL)
				);

				CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
				CREATE INDEX IF NOT EXISTS idx_users_role_created_at ON users(role, created_at);
			`,
		},
		{
			Version:     3,
			Description: "Create assessment_cases table",
			SQL: `
				CREATE TABLE IF NOT EXISTS assessment_cases (
					id BIGSERIAL PRIMARY KEY,
					display_name VARCHAR(255) NOT NULL DEFAULT '',
					module_type VARCHAR(32) NOT NULL,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE RESTRICT,
					customer_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_by_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
					status VARCHAR(32) NOT NULL DEFAULT 'draft',
					payload JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_assessment_cases_created_by ON assessment_cases(created_by_user_id);
				CREATE INDEX IF NOT EXISTS idx_assessment_cases_organization_id ON assessment_cases(organization_id);
			`,
		},
	}
}

// Migrate applies pending migrations, each in its own transaction
func Migrate(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		log := logger.WithFields(logrus.Fields{
			"version":     m.Version,
			"description": m.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		log.Info("Migration completed")
	}

	return nil
}
