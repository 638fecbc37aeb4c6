package models

// Profile holds the externally owned display data for a user.
// The presence engine only ever reads profiles, it never writes them.
type Profile struct {
	UserID      string `db:"user_id" json:"user_id"`
	AvatarURL   string `db:"avatar_url" json:"avatar_url,omitempty"`
	Displayname string `db:"displayname" json:"displayname,omitempty"`
}

// TableName returns the table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}
