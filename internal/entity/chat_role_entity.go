package entity

import "time"

// ChatRole tags a chat number with a role when a rule configures one.
// Inserts are idempotent.
type ChatRole struct {
	Number    string `gorm:"primaryKey;size:30"`
	RoleId    int64  `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (ChatRole) TableName() string {
	return "chat_roles"
}

// CatalogKeyword is a derived keyword-to-image pairing extracted from image
// rules; it competes in the AI reference-image ranking.
type CatalogKeyword struct {
	Keyword  string
	MediaURL string
	Step     string
}
