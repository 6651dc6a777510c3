// Package journal persists accepted alert notices to PostgreSQL.
//
// Notices are queued without blocking the realtime path and written in
// batches with append-only semantics. Each row is keyed by a name-based UUID
// of the raw frame, so a notice replayed by the server after a reconnect is
// absorbed by ON CONFLICT DO NOTHING.
package journal
