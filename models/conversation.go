package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

type Conversation struct {
	ConversationID   string    `gorm:"primaryKey;type:varchar(36)" json:"conversation_id"`
	Title            *string   `gorm:"type:varchar(255)" json:"title"`
	ConversationType string    `gorm:"type:varchar(10);index;default:'direct'" json:"conversation_type"` // "direct" or "group"
	CreatedByID      *string   `gorm:"type:varchar(36);index" json:"created_by_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`

	CreatedBy    *User                     `gorm:"foreignKey:CreatedByID;references:UserID;constraint:OnDelete:SET NULL" json:"-"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ConversationID == "" {
		c.ConversationID = uuid.NewString()
	}
	if c.ConversationType == "" {
		c.ConversationType = ConversationDirect
	}
	return nil
}

// IsGroup 是否群聊
func (c Conversation) IsGroup() bool {
	return c.ConversationType == ConversationGroup
}

// TitleOr 返回标题，没有标题时返回 fallback
func (c Conversation) TitleOr(fallback string) string {
	if c.Title != nil && *c.Title != "" {
		return *c.Title
	}
	return fallback
}
