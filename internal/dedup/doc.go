// Package dedup implements the alert Deduplicator.
//
// The Deduplicator:
//   - Remembers the ids of the most recent alert notices it accepted
//   - Keys notices by data.alert.id, falling back to data.id
//   - Only filters creations; updates and deletions of a known alert always
//     pass
//   - Forgets the oldest id once capacity is reached
package dedup
