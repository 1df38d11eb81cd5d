package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/evalhub/pkg/auth"
)

// Snapshot is the portable form of a user's data
type Snapshot struct {
	UserID     int64      `json:"user_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Resources  []Resource `json:"resources"`
	ExportedAt time.Time  `json:"exported_at"`
}

// Resource is one exported assessment case
type Resource struct {
	ID          int64           `json:"id"`
	DisplayName string          `json:"display_name"`
	ModuleType  auth.Module     `json:"module_type"`
	CreatedDate time.Time       `json:"created_date"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Receipt describes a persisted snapshot
type Receipt struct {
	Sink      string `json:"sink"`
	Key       string `json:"key"`
	Bytes     int    `json:"bytes"`
	Resources int    `json:"resources"`
}

// ErrSnapshotExists is returned by a sink asked to overwrite a snapshot
var ErrSnapshotExists = errors.New("export: snapshot already exists")

// ExportError reports a failed export for one user
type ExportError struct {
	UserID int64
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed for user %d: %v", e.UserID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// IsExportError checks if an error is an export error
func IsExportError(err error) bool {
	var ee *ExportError
	return errors.As(err, &ee)
}

// SnapshotKey returns the sink key of a snapshot taken at t
func SnapshotKey(userID int64, t time.Time) string {
	return fmt.Sprintf("%d/%s.json", userID, t.UTC().Format("20060102T150405.000000000Z"))
}
