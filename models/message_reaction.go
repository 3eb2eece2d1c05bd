package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReactionEmoji 反应类型与表情的对应关系
var ReactionEmoji = map[string]string{
	"like":  "👍",
	"love":  "❤️",
	"laugh": "😂",
	"angry": "😠",
	"sad":   "😢",
	"wow":   "😮",
}

type MessageReaction struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MessageID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_reaction_unique" json:"message_id"`
	UserID       string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_reaction_unique" json:"user_id"`
	ReactionType string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_reaction_unique" json:"reaction_type"`
	CreatedAt    time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID;references:UserID;-:migration" json:"-"`
}

func (MessageReaction) TableName() string { return "message_reactions" }

func (r *MessageReaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
