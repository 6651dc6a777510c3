package model

import "encoding/json"

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

// AlertAction is the change an alert notice describes.
type AlertAction string

const (
	AlertCreated AlertAction = "created"
	AlertUpdated AlertAction = "updated"
	AlertDeleted AlertAction = "deleted"
)

// IncidentType classifies what a camera detected.
type IncidentType string

const (
	IncidentWorthChecking IncidentType = "WORTH_CHECKING"
	IncidentDangerous     IncidentType = "DANGEROUS"
	IncidentCritical      IncidentType = "CRITICAL"
)

// Incident is the detection an alert was raised for.
type Incident struct {
	ID            int64        `json:"id"`
	Type          IncidentType `json:"type"`
	SeverityLevel int          `json:"severity_level"` // 1 = low, 3 = critical
	DetectedBy    string       `json:"detected_by"`    // "YOLO", "AI" or "MANUAL"
	Description   string       `json:"description"`
	IsVerified    bool         `json:"is_verified"`
	Timestamp     string       `json:"timestamp"`
}

// Alert is a security alert shown to operators.
type Alert struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    string    `json:"created_at"`
	Incident     *Incident `json:"incident,omitempty"`
}

// Severity returns the incident severity, or 0 when the alert carries no incident.
func (a Alert) Severity() int {
	if a.Incident == nil {
		return 0
	}
	return a.Incident.SeverityLevel
}

// AlertNotice is the data of an "alert" envelope.
//
// The server sends {"action": ..., "alert": {...}}; older producers send the
// bare alert fields, so a top-level id is accepted too.
type AlertNotice struct {
	Action AlertAction `json:"action"`
	Alert  Alert       `json:"alert"`
	ID     int64       `json:"id,omitempty"`
}

// AlertID returns the id the notice refers to.
func (n AlertNotice) AlertID() (int64, bool) {
	if n.Alert.ID != 0 {
		return n.Alert.ID, true
	}
	if n.ID != 0 {
		return n.ID, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Camera and dashboard
// -----------------------------------------------------------------------------

// CameraFrame is the data of a "frame" envelope. The frame body is opaque here.
type CameraFrame struct {
	CameraID string          `json:"camera_id"`
	Data     json.RawMessage `json:"data"`
}

// Detection is the data of a "detection" envelope.
type Detection struct {
	CameraID string          `json:"camera_id"`
	Data     json.RawMessage `json:"data"`
}

// DashboardUpdate is the data of a "dashboard_update" envelope.
type DashboardUpdate struct {
	Data map[string]json.RawMessage `json:"data"`
}

// Pong is the server's reply to a keepalive ping.
type Pong struct {
	Message  string `json:"message,omitempty"`
	CameraID string `json:"camera_id,omitempty"`
}
