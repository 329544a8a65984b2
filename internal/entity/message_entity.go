package entity

import "time"

// Message kinds as stored in the log.
const (
	KindClient = "cliente"
	KindBot    = "bot"
)

// Message is one entry of the per-chat message log.
type Message struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	Number      string `gorm:"index;size:30"`
	Kind        string `gorm:"column:tipo;size:20"`
	Body        string `gorm:"column:mensaje;type:text"`
	MediaURL    string `gorm:"type:text"`
	WaId        string `gorm:"size:128"`
	ReplyToWaId string `gorm:"size:128"`
	Step        string `gorm:"size:100"`
	RuleId      *int64
	Status      string `gorm:"column:estado;size:30"`
	Timestamp   time.Time
}

func (Message) TableName() string {
	return "mensajes"
}

// ProcessedMessage dedups inbound deliveries by the transport message id.
type ProcessedMessage struct {
	WaId      string `gorm:"primaryKey;size:128"`
	CreatedAt time.Time
}

func (ProcessedMessage) TableName() string {
	return "mensajes_procesados"
}
