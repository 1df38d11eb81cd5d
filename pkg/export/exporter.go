package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/cases"
	"github.com/platinummonkey/evalhub/pkg/observability"
)

// Source provides the cases owned by a user
type Source interface {
	ListCasesByCreator(ctx context.Context, userID int64) ([]*cases.Case, error)
}

// Sink persists serialized snapshots
type Sink interface {
	// Name labels the sink in metrics and logs
	Name() string

	// Write stores data under key. It must not overwrite an existing key.
	Write(ctx context.Context, key string, data []byte) error
}

// Exporter builds and persists snapshots
type Exporter struct {
	source  Source
	sink    Sink
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	now     func() time.Time
}

// Option configures an Exporter
type Option func(*Exporter)

// WithMetrics records exports in metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Exporter) {
		e.metrics = m
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// NewExporter creates an exporter writing to sink
func NewExporter(source Source, sink Sink, logger logrus.FieldLogger, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot builds the snapshot of user without persisting it
func (e *Exporter) Snapshot(ctx context.Context, user *auth.User) (*Snapshot, error) {
	owned, err := e.source.ListCasesByCreator(ctx, user.ID)
	if err != nil {
		return nil, &ExportError{UserID: user.ID, Err: fmt.Errorf("failed to list cases: %w", err)}
	}

	snap := &Snapshot{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Resources:  make([]Resource, 0, len(owned)),
		ExportedAt: e.now().UTC(),
	}
	for _, c := range owned {
		snap.Resources = append(snap.Resources, Resource{
			ID:          c.ID,
			DisplayName: c.DisplayName,
			ModuleType:  c.ModuleType,
			CreatedDate: c.CreatedAt,
			Payload:     c.Payload,
		})
	}
	return snap, nil
}

// Export builds the snapshot of user and writes it to the sink
func (e *Exporter) Export(ctx context.Context, user *auth.User) (*Snapshot, *Receipt, error) {
	snap, err := e.Snapshot(ctx, user)
	if err != nil {
		e.metrics.RecordExport(e.sink.Name(), "error")
		return nil, nil, err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		e.metrics.RecordExport(e.sink.Name(), "error")
		return nil, nil, &ExportError{UserID: user.ID, Err: fmt.Errorf("failed to encode snapshot: %w", err)}
	}

	key := SnapshotKey(user.ID, snap.ExportedAt)
	if err := e.sink.Write(ctx, key, data); err != nil {
		e.metrics.RecordExport(e.sink.Name(), "error")
		return nil, nil, &ExportError{UserID: user.ID, Err: fmt.Errorf("failed to write snapshot %s: %w", key, err)}
	}

	e.metrics.RecordExport(e.sink.Name(), "ok")
	e.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"sink":      e.sink.Name(),
		"key":       key,
		"resources": len(snap.Resources),
	}).Info("User data exported")

	return snap, &Receipt{
		Sink:      e.sink.Name(),
		Key:       key,
		Bytes:     len(data),
		Resources: len(snap.Resources),
	}, nil
}
