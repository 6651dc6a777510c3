// Package metrics provides Prometheus metrics for monitoring the realtime
// transport.
//
// Key metrics:
//   - Connection state and dial attempts per channel
//   - Scheduled reconnects and their outcome
//   - Inbound frames by type, dropped frames by reason
//   - Listener panics
//   - Outbound sends and rejected sends
//
// A nil *Metrics is valid and records nothing.
package metrics
