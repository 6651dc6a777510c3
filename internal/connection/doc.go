// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one WebSocket per realtime channel
//   - Drives the Idle → Connecting → Open → Closing → Closed state machine
//   - Shares a single in-flight dial between concurrent Connect callers
//   - Reconnects after abnormal closes with a constant delay, capped by
//     MaxReconnectAttempts; a server close with code 1000 or Disconnect
//     stops retrying
//   - Decodes inbound frames and dispatches them to per-type listeners in
//     arrival order
//
// Each live socket has one pump goroutine; it is the only caller of
// listeners, so frames are delivered in wire order. Listeners run without any
// Manager lock held and may call back into the Manager.
package connection
