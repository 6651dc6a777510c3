// Package model defines the payload types carried by realtime envelopes.
//
// Types mirror the JSON the camwatch server emits on its alert, camera and
// dashboard channels.
//
// Conventions:
//   - IDs: int64 primary keys as assigned by the server
//   - Timestamps: kept as the server's ISO 8601 strings
//   - Unknown fields are ignored; missing fields decode to zero values
package model
