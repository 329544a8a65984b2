package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AILog records one question/answer interaction. Written best-effort: a
// logging failure never fails the answer.
type AILog struct {
	Id         int64  `gorm:"primaryKey;autoIncrement"`
	Number     string `gorm:"index;size:30"`
	Question   string `gorm:"type:text"`
	Answer     string `gorm:"type:text"`
	References datatypes.JSON `gorm:"type:jsonb"`
	History    datatypes.JSON `gorm:"type:jsonb"`
	FromCache  bool
	CreatedAt  time.Time
}

func (AILog) TableName() string {
	return "ia_logs"
}
