package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultType is the event type used for frames without a "type" field.
const DefaultType = "message"

// ErrMalformedFrame is returned for frames that are not a JSON object.
var ErrMalformedFrame = errors.New("malformed frame")

// Envelope is one decoded inbound frame.
type Envelope struct {
	Type       string
	Data       json.RawMessage // "data" member, nil when absent
	Raw        []byte          // the frame as received
	Event      Event
	ReceivedAt time.Time
}

// Decode parses raw into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	msgType, err := extractType(fields["type"])
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		Type:       msgType,
		Raw:        raw,
		ReceivedAt: time.Now(),
	}
	if data, ok := fields["data"]; ok && !isNull(data) {
		env.Data = data
	}
	env.Event = decodeEvent(msgType, raw, env.Data)

	return env, nil
}

// Encode builds an outbound frame of the given type with optional data.
func Encode(msgType string, data any) ([]byte, error) {
	frame := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: msgType, Data: data}

	b, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", msgType, err)
	}
	return b, nil
}

// extractType reads the "type" member. Missing, null and empty fall back to
// DefaultType; a non-string type is malformed.
func extractType(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return DefaultType, nil
	}

	var msgType string
	if err := json.Unmarshal(raw, &msgType); err != nil {
		return "", fmt.Errorf("%w: type is not a string", ErrMalformedFrame)
	}
	if msgType == "" {
		return DefaultType, nil
	}
	return msgType, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
