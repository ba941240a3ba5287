package users

import (
	"strings"
	"time"
)

// Identity records a username that has logged in to this installation, with
// first/last seen bookkeeping. The username doubles as the note owner string.
type Identity struct {
	Username    string    `gorm:"column:username;primaryKey;size:190;not null"`
	FirstSeenAt time.Time `gorm:"column:first_seen_at;autoCreateTime"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;not null"`
	LoginCount  int64     `gorm:"column:login_count;not null;default:0"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
