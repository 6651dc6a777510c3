// Package keepalive implements the application-level ping loop.
//
// The Pinger:
//   - Sends {"type":"ping"} every 30 seconds by default
//   - Skips ticks while the transport is not connected
//   - Is started and stopped by the consumer; the transport never pings on
//     its own at this level
package keepalive
