// Package router decodes inbound realtime frames and fans them out to
// per-event-type listeners.
//
// Every text frame is a JSON object carrying at least a "type" field:
//
//	{"type": "alert", "message": "...", "data": {"action": "created", "alert": {...}}}
//	{"type": "frame", "camera_id": "3", "data": {...}}
//	{"type": "dashboard_update", "data": {...}}
//	{"type": "pong", "message": "pong"}
//
// Decode turns a frame into an Envelope and attaches a typed Event looked up
// from the frame's type. Frames that are not JSON objects fail with
// ErrMalformedFrame and are never delivered. Known types whose body does not
// match the expected shape still deliver, carrying an UnknownEvent.
//
// A Registry holds the listeners. It is safe for concurrent use; dispatch
// works on a snapshot so listeners may register or unregister (themselves or
// others) while being called.
package router
