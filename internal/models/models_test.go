// Package models tests for presence data models.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParsePresenceState(t *testing.T) {
	valid := []string{"online", "offline", "unavailable"}
	for _, s := range valid {
		state, err := ParsePresenceState(s)
		if err != nil {
			t.Errorf("ParsePresenceState(%q) failed: %v", s, err)
		}
		if state.String() != s {
			t.Errorf("Expected %q, got %q", s, state)
		}
	}

	invalid := []string{"", "Online", "busy", "away", "online "}
	for _, s := range invalid {
		if _, err := ParsePresenceState(s); err == nil {
			t.Errorf("ParsePresenceState(%q) should fail", s)
		}
	}
}

func TestPresenceStateUnmarshalJSON(t *testing.T) {
	var req struct {
		Presence  PresenceState `json:"presence"`
		StatusMsg string        `json:"status_msg"`
	}

	if err := json.Unmarshal([]byte(`{"presence":"online","status_msg":"hi"}`), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if req.Presence != PresenceOnline {
		t.Errorf("Expected online, got %q", req.Presence)
	}

	if err := json.Unmarshal([]byte(`{"presence":"busy"}`), &req); err == nil {
		t.Error("Unknown presence value should fail to decode")
	}
	if err := json.Unmarshal([]byte(`{"presence":42}`), &req); err == nil {
		t.Error("Non-string presence value should fail to decode")
	}
}

func TestPresenceStatusState(t *testing.T) {
	status := &PresenceStatus{
		UserID:   "@carl:meridian.test",
		Presence: "online",
	}
	state, err := status.State()
	if err != nil {
		t.Fatalf("State() failed: %v", err)
	}
	if state != PresenceOnline {
		t.Errorf("Expected online, got %q", state)
	}

	// A corrupted row must surface as an error, never a default.
	status.Presence = "onlnie"
	if _, err := status.State(); err == nil {
		t.Error("Corrupted presence value should return an error")
	}
}

func TestTimestampsAreMilliseconds(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	status := &PresenceStatus{UpdatedAt: at.UnixMilli()}
	if !status.UpdatedAtTime().Equal(at) {
		t.Errorf("UpdatedAtTime mismatch: %v != %v", status.UpdatedAtTime(), at)
	}

	event := &StreamEvent{CreatedAt: at.UnixMilli()}
	if !event.CreatedAtTime().Equal(at) {
		t.Errorf("CreatedAtTime mismatch: %v != %v", event.CreatedAtTime(), at)
	}
}

func TestPresenceEventJSONShape(t *testing.T) {
	event := PresenceEvent{
		Content: PresenceEventContent{
			Presence:        PresenceUnavailable,
			CurrentlyActive: false,
			LastActiveAgo:   1500,
			UserID:          "@bob:meridian.test",
		},
		Type:    EventTypePresence,
		EventID: "$abc:meridian.test",
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	content, ok := decoded["content"].(map[string]interface{})
	if !ok {
		t.Fatal("Event should nest payload under content")
	}
	for _, key := range []string{"presence", "currently_active", "last_active_ago", "user_id"} {
		if _, ok := content[key]; !ok {
			t.Errorf("content missing key %q", key)
		}
	}
	if _, ok := content["avatar_url"]; ok {
		t.Error("Empty avatar_url should be omitted")
	}
	if decoded["event_id"] != "$abc:meridian.test" {
		t.Errorf("Unexpected event_id: %v", decoded["event_id"])
	}
}
