// Package export snapshots a user's resources before destructive cleanup.
//
// # Overview
//
// The Exporter reads every case created by a user and serializes it into a
// portable Snapshot:
//
//	{
//	  "user_id": 42,
//	  "username": "trial-educator",
//	  "email": "t@example.com",
//	  "resources": [{"id": 7, "display_name": "...", "module_type": "k12", ...}],
//	  "exported_at": "2026-10-14T03:30:00Z"
//	}
//
// Snapshots are written through a Sink under a timestamped key
// (<userID>/<timestamp>.json), so a user retried on a later run never
// overwrites an earlier snapshot.
//
// # Sinks
//
//   - FileSink: a local directory, one file per snapshot
//   - S3Sink: an S3 (or MinIO) bucket, with a sha256 checksum in the object metadata
//
// # Errors
//
// Every failure is returned as *ExportError so the lifecycle scheduler can
// record it per user and move on.
package export
