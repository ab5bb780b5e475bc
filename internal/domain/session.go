package domain

import "time"

type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	AdminID   string    `gorm:"size:36;index;not null" json:"admin_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
