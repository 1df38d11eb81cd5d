package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/storage"
)

const userColumns = `id, username, email, password_hash, role, organization_id, assigned_modules,
	report_count, max_reports, is_active, reset_token, verification_token,
	last_warned_at, anonymized_at, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u            auth.User
		role         string
		orgID        sql.NullInt64
		modules      []string
		resetToken   sql.NullString
		verifyToken  sql.NullString
		lastWarnedAt sql.NullTime
		anonymizedAt sql.NullTime
		lastLoginAt  sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &orgID, pq.Array(&modules),
		&u.ReportCount, &u.MaxReports, &u.IsActive, &resetToken, &verifyToken,
		&lastWarnedAt, &anonymizedAt, &u.CreatedAt, &lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = auth.Role(role)
	u.OrganizationID = int64Ptr(orgID)
	u.AssignedModules = stringsToModules(modules)
	if resetToken.Valid {
		u.ResetToken = &resetToken.String
	}
	if verifyToken.Valid {
		u.VerificationToken = &verifyToken.String
	}
	u.LastWarnedAt = timePtr(lastWarnedAt)
	u.AnonymizedAt = timePtr(anonymizedAt)
	u.LastLoginAt = timePtr(lastLoginAt)
	return &u, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// GetUser implements storage.UserReader
func (s *Store) GetUser(ctx context.Context, id int64) (user *auth.User, err error) {
	ctx, span := startSpan(ctx, "SELECT", "users")
	defer func() { err = endSpan(span, err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err = scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsersByRole implements storage.UserReader
func (s *Store) ListUsersByRole(ctx context.Context, role auth.Role) (users []*auth.User, err error) {
	ctx, span := startSpan(ctx, "SELECT", "users")
	defer func() { err = endSpan(span, err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// CreateUser implements storage.UserWriter. The id is assigned by the database.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) (err error) {
	if err := user.Validate(); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "INSERT", "users")
	defer func() { err = endSpan(span, err) }()

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (username, email, password_hash, role, organization_id, assigned_modules,
			report_count, max_reports, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		nullInt64(user.OrganizationID),
		pq.Array(modulesToStrings(user.AssignedModules)),
		user.ReportCount,
		user.MaxReports,
		user.IsActive,
		createdAt,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", user.Username, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// IncrementReportCount implements storage.ReportCounter as a single
// conditional UPDATE, so concurrent callers serialize on the row lock.
func (s *Store) IncrementReportCount(ctx context.Context, userID int64, limit int) (count int, ok bool, err error) {
	ctx, span := startSpan(ctx, "UPDATE", "users")
	defer func() { err = endSpan(span, err) }()

	query := `
		UPDATE users
		SET report_count = report_count + 1
		WHERE id = $1 AND ($2 < 0 OR report_count < $2)
		RETURNING report_count
	`
	err = s.db.QueryRowContext(ctx, query, userID, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to increment report count: %w", err)
	}

	// Either the user does not exist or the limit was already reached
	err = s.db.QueryRowContext(ctx, `SELECT report_count FROM users WHERE id = $1`, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read report count: %w", err)
	}
	return count, false, nil
}

// ResetReportCount implements storage.ReportCounter
func (s *Store) ResetReportCount(ctx context.Context, userID int64) (err error) {
	ctx, span := startSpan(ctx, "UPDATE", "users")
	defer func() { err = endSpan(span, err) }()

	result, err := s.db.ExecContext(ctx, `UPDATE users SET report_count = 0 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to reset report count: %w", err)
	}
	return requireRow(result, "user", userID)
}

// ClaimWarning implements storage.WarningMarker
func (s *Store) ClaimWarning(ctx context.Context, userID int64, windowStart, now time.Time) (claimed bool, err error) {
	ctx, span := startSpan(ctx, "UPDATE", "users")
	defer func() { err = endSpan(span, err) }()

	query := `
		UPDATE users
		SET last_warned_at = $3
		WHERE id = $1 AND (last_warned_at IS NULL OR last_warned_at < $2)
	`
	result, err := s.db.ExecContext(ctx, query, userID, windowStart, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim warning: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}

	// Nothing updated: either already warned in this window or no such user
	if err := s.userExists(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

// RestoreWarning implements storage.WarningMarker
func (s *Store) RestoreWarning(ctx context.Context, userID int64, previous *time.Time) (err error) {
	ctx, span := startSpan(ctx, "UPDATE", "users")
	defer func() { err = endSpan(span, err) }()

	var prev sql.NullTime
	if previous != nil {
		prev = sql.NullTime{Time: *previous, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET last_warned_at = $2 WHERE id = $1`, userID, prev)
	if err != nil {
		return fmt.Errorf("failed to restore warning marker: %w", err)
	}
	return requireRow(result, "user", userID)
}

// PurgeUser implements storage.UserPurger. The row lock taken by SELECT ...
// FOR UPDATE keeps a concurrent purge of the same user from deleting twice,
// and blocks case inserts for the user (their foreign key check needs a share
// lock on the row) until the transaction ends.
func (s *Store) PurgeUser(ctx context.Context, anonymized *auth.User, exported []int64) (deleted int, err error) {
	ctx, span := startSpan(ctx, "PURGE", "users")
	defer func() { err = endSpan(span, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM users WHERE id = $1 FOR UPDATE`, anonymized.ID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", anonymized.ID, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock user: %w", err)
	}
	if !active {
		return 0, fmt.Errorf("user %d: %w", anonymized.ID, storage.ErrNotActive)
	}

	// A nil array binds as NULL, and NOT (id = ANY(NULL)) never matches.
	if exported == nil {
		exported = []int64{}
	}
	ids := pq.Array(exported)

	var unexported int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM assessment_cases
		WHERE created_by_user_id = $1 AND NOT (id = ANY($2))
	`, anonymized.ID, ids).Scan(&unexported)
	if err != nil {
		return 0, fmt.Errorf("failed to check unexported cases: %w", err)
	}
	if unexported > 0 {
		return 0, fmt.Errorf("user %d has %d: %w", anonymized.ID, unexported, storage.ErrUnexportedCases)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM assessment_cases
		WHERE created_by_user_id = $1 AND id = ANY($2)
	`, anonymized.ID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cases: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	query := `
		UPDATE users
		SET email = $2, username = $3, password_hash = $4,
			reset_token = NULL, verification_token = NULL,
			is_active = FALSE, anonymized_at = $5
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query,
		anonymized.ID,
		anonymized.Email,
		anonymized.Username,
		anonymized.PasswordHash,
		anonymized.AnonymizedAt,
	); err != nil {
		return 0, fmt.Errorf("failed to anonymize user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	return int(rowsAffected), nil
}

func requireRow(result sql.Result, kind string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) userExists(ctx context.Context, id int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
