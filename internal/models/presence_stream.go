package models

import "time"

// StreamEvent is one immutable row of the presence transition log.
// Ordering is a global monotonic sequence assigned at insert time and
// never reused. AvatarURL and Displayname are profile snapshots taken at
// transition time; either may be empty when the user had no profile.
type StreamEvent struct {
	Ordering    int64  `db:"ordering" json:"ordering"`
	EventID     string `db:"event_id" json:"event_id"`
	UserID      string `db:"user_id" json:"user_id"`
	Presence    string `db:"presence" json:"presence"`
	AvatarURL   string `db:"avatar_url" json:"avatar_url,omitempty"`
	Displayname string `db:"displayname" json:"displayname,omitempty"`
	CreatedAt   int64  `db:"created_at" json:"created_at"` // unix milliseconds
}

// TableName returns the table name for StreamEvent.
func (StreamEvent) TableName() string {
	return "presence_stream"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (e *StreamEvent) CreatedAtTime() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// State decodes the stored presence string.
func (e *StreamEvent) State() (PresenceState, error) {
	return ParsePresenceState(e.Presence)
}
