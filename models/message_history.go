package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageHistory 消息被修改前的内容
type MessageHistory struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MessageID    string    `gorm:"type:varchar(36);not null;index" json:"message_id"`
	PreviousBody string    `gorm:"type:text" json:"previous_body"`
	EditedByID   *string   `gorm:"type:varchar(36)" json:"edited_by"`
	EditedAt     time.Time `gorm:"autoCreateTime" json:"edited_at"`
}

func (MessageHistory) TableName() string { return "message_histories" }

func (h *MessageHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
