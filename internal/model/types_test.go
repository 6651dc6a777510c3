package model

import (
	"encoding/json"
	"testing"
)

func TestAlertNotice_Decode(t *testing.T) {
	data := `{
		"action": "created",
		"alert": {
			"id": 12,
			"title": "Security Alert",
			"message": "Person detected at gate",
			"acknowledged": false,
			"created_at": "2026-03-02T10:15:00.123456Z",
			"incident": {"id": 5, "type": "CRITICAL", "severity_level": 3, "detected_by": "YOLO"}
		}
	}`

	var notice AlertNotice
	if err := json.Unmarshal([]byte(data), &notice); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if notice.Action != AlertCreated {
		t.Errorf("Action = %q, want %q", notice.Action, AlertCreated)
	}
	id, ok := notice.AlertID()
	if !ok || id != 12 {
		t.Errorf("AlertID() = %d, %v, want 12, true", id, ok)
	}
	if notice.Alert.Incident == nil || notice.Alert.Incident.Type != IncidentCritical {
		t.Errorf("Incident = %+v, want CRITICAL incident", notice.Alert.Incident)
	}
	if got := notice.Alert.Severity(); got != 3 {
		t.Errorf("Severity() = %d, want 3", got)
	}
}

func TestAlertNotice_AlertID(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantID int64
		wantOK bool
	}{
		{"nested alert", `{"action":"updated","alert":{"id":9}}`, 9, true},
		{"bare id", `{"id":7}`, 7, true},
		{"nested wins over bare", `{"id":1,"alert":{"id":2}}`, 2, true},
		{"no id", `{"action":"created"}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var notice AlertNotice
			if err := json.Unmarshal([]byte(tt.data), &notice); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			id, ok := notice.AlertID()
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("AlertID() = %d, %v, want %d, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestAlert_SeverityWithoutIncident(t *testing.T) {
	if got := (Alert{ID: 1}).Severity(); got != 0 {
		t.Errorf("Severity() = %d, want 0", got)
	}
}
