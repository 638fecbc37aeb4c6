package models

// PresenceEventContent is the client-facing payload of a presence event.
type PresenceEventContent struct {
	Presence        PresenceState `json:"presence"`
	CurrentlyActive bool          `json:"currently_active"`
	LastActiveAgo   int64         `json:"last_active_ago"`
	AvatarURL       string        `json:"avatar_url,omitempty"`
	Displayname     string        `json:"displayname,omitempty"`
	UserID          string        `json:"user_id"`
}

// PresenceEvent is one entry of a presence list or sync response.
type PresenceEvent struct {
	Content PresenceEventContent `json:"content"`
	Type    string               `json:"type"`
	EventID string               `json:"event_id"`
}

// EventTypePresence is the event type emitted for every presence event.
const EventTypePresence = "m.presence"
