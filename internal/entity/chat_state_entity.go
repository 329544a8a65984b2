package entity

import "time"

// Chat status values. StatusBlocked is protected: an ordinary upsert never
// overwrites it, only an explicit unblock does.
const (
	StatusActive   = "ia_activa"
	StatusFallback = "ia_fallback"
	StatusBlocked  = "ia_bloqueada"
	StatusNoRule   = "sin_regla"
	StatusError    = "error"
)

// ChatState is the per-number position in the conversation flow.
type ChatState struct {
	Number       string `gorm:"primaryKey;size:30"`
	Step         string `gorm:"size:100"`
	Status       string `gorm:"column:estado;size:30"`
	LastActivity time.Time
}

func (ChatState) TableName() string {
	return "chat_estados"
}

// Expired reports whether the session idled past the timeout.
func (s ChatState) Expired(timeout time.Duration, now time.Time) bool {
	if s.LastActivity.IsZero() {
		return false
	}
	return now.Sub(s.LastActivity) > timeout
}
