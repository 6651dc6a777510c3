package router

import (
	"encoding/json"

	"github.com/rickgao/camwatch/internal/model"
)

// Event types sent by the camwatch server, plus the outbound ping.
const (
	TypeAlert           = "alert"
	TypeFrame           = "frame"
	TypeDetection       = "detection"
	TypeDashboardUpdate = "dashboard_update"
	TypePong            = "pong"
	TypePing            = "ping"
)

// Event is the typed payload of an Envelope.
type Event interface {
	EventType() string
}

// AlertEvent carries an alert create/update/delete notice.
type AlertEvent struct {
	Message string
	Notice  model.AlertNotice
}

// FrameEvent carries a camera frame.
type FrameEvent struct {
	Frame model.CameraFrame
}

// DetectionEvent carries a detection result for a camera.
type DetectionEvent struct {
	Detection model.Detection
}

// DashboardUpdateEvent carries a dashboard refresh.
type DashboardUpdateEvent struct {
	Update model.DashboardUpdate
}

// PongEvent is the reply to a keepalive ping.
type PongEvent struct {
	Pong model.Pong
}

// UnknownEvent is attached to frames whose type has no decoder, or whose body
// did not match the decoder's shape. Err is set in the latter case.
type UnknownEvent struct {
	Type string
	Data json.RawMessage
	Err  error
}

func (AlertEvent) EventType() string           { return TypeAlert }
func (FrameEvent) EventType() string           { return TypeFrame }
func (DetectionEvent) EventType() string       { return TypeDetection }
func (DashboardUpdateEvent) EventType() string { return TypeDashboardUpdate }
func (PongEvent) EventType() string            { return TypePong }
func (e UnknownEvent) EventType() string       { return e.Type }

// decoder builds a typed event from the whole frame.
type decoder func(raw []byte) (Event, error)

var decoders = map[string]decoder{
	TypeAlert: func(raw []byte) (Event, error) {
		var wire struct {
			Message string            `json:"message"`
			Data    model.AlertNotice `json:"data"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		return AlertEvent{Message: wire.Message, Notice: wire.Data}, nil
	},
	TypeFrame: func(raw []byte) (Event, error) {
		var f model.CameraFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return FrameEvent{Frame: f}, nil
	},
	TypeDetection: func(raw []byte) (Event, error) {
		var d model.Detection
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return DetectionEvent{Detection: d}, nil
	},
	TypeDashboardUpdate: func(raw []byte) (Event, error) {
		var u model.DashboardUpdate
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return DashboardUpdateEvent{Update: u}, nil
	},
	TypePong: func(raw []byte) (Event, error) {
		var p model.Pong
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return PongEvent{Pong: p}, nil
	},
}

func decodeEvent(msgType string, raw []byte, data json.RawMessage) Event {
	dec, ok := decoders[msgType]
	if !ok {
		return UnknownEvent{Type: msgType, Data: data}
	}
	ev, err := dec(raw)
	if err != nil {
		return UnknownEvent{Type: msgType, Data: data, Err: err}
	}
	return ev
}
