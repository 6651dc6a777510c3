// Package binder ties a consumer's lifetime to a shared connection.Manager.
//
// A Session is created with Attach and ended with Detach. While attached it:
//   - connects the transport once, after a short debounce, unless it is
//     already open
//   - records the latest envelope of the watched event types
//   - tracks whether the transport is connected and reports transitions
//
// Detach removes only what the session registered. It never disconnects the
// transport, so other sessions sharing it keep receiving.
package binder
