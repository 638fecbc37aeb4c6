package models

import "time"

// PresenceStatus is the single current presence row for a user.
// The stored presence string is decoded lazily so a corrupted row surfaces
// as an explicit error instead of taking the process down.
type PresenceStatus struct {
	UserID    string `db:"user_id" json:"user_id"`
	EventID   string `db:"event_id" json:"event_id"`
	Presence  string `db:"presence" json:"presence"`
	StatusMsg string `db:"status_msg" json:"status_msg,omitempty"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"` // unix milliseconds
}

// TableName returns the table name for PresenceStatus.
func (PresenceStatus) TableName() string {
	return "presence_status"
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (s *PresenceStatus) UpdatedAtTime() time.Time {
	return time.UnixMilli(s.UpdatedAt)
}

// State decodes the stored presence string.
func (s *PresenceStatus) State() (PresenceState, error) {
	return ParsePresenceState(s.Presence)
}
