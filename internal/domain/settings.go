package domain

import "time"

// SettingsID is the primary key of the only settings row.
const SettingsID uint = 1

type Settings struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	AdjusterColima         string    `gorm:"size:32;not null;default:''" json:"adjusterColima"`
	AdjusterTecoman        string    `gorm:"size:32;not null;default:''" json:"adjusterTecoman"`
	AdjusterManzanillo     string    `gorm:"size:32;not null;default:''" json:"adjusterManzanillo"`
	PresidentSignaturePath *string   `gorm:"size:255" json:"presidentSignaturePath,omitempty"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{&Admin{}, &Session{}, &Member{}, &Address{}, &VigencyEvent{}, &Settings{}}
}
