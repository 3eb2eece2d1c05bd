package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationNewMessage         = "new_message"
	NotificationMention            = "mention"
	NotificationReaction           = "reaction"
	NotificationConversationInvite = "conversation_invite"
	NotificationSystem             = "system"
)

// ValidNotificationType 判断通知类型是否合法
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationNewMessage, NotificationMention, NotificationReaction,
		NotificationConversationInvite, NotificationSystem:
		return true
	}
	return false
}

type Notification struct {
	NotificationID        string     `gorm:"primaryKey;type:varchar(36)" json:"notification_id"`
	RecipientID           string     `gorm:"type:varchar(36);not null;index:idx_notifications_recipient_created;index:idx_notifications_recipient_read" json:"recipient_id"`
	SenderID              *string    `gorm:"type:varchar(36)" json:"sender_id"`
	NotificationType      string     `gorm:"type:varchar(20);not null" json:"notification_type"`
	Title                 string     `gorm:"type:varchar(255);not null" json:"title"`
	Message               string     `gorm:"type:text" json:"message"`
	RelatedMessageID      *string    `gorm:"type:varchar(36);index" json:"related_message_id"`
	RelatedConversationID *string    `gorm:"type:varchar(36);index" json:"related_conversation_id"`
	IsRead                bool       `gorm:"default:false;index:idx_notifications_recipient_read" json:"is_read"`
	IsSent                bool       `gorm:"default:false" json:"is_sent"`
	ReadAt                *time.Time `json:"read_at"`
	SentAt                *time.Time `json:"sent_at"`
	CreatedAt             time.Time  `gorm:"index:idx_notifications_recipient_created,sort:desc" json:"created_at"`

	Recipient           User          `gorm:"foreignKey:RecipientID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sender              *User         `gorm:"foreignKey:SenderID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RelatedMessage      *Message      `gorm:"foreignKey:RelatedMessageID;references:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	RelatedConversation *Conversation `gorm:"foreignKey:RelatedConversationID;references:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	return nil
}

// MarkAsRead 幂等地标记为已读
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	if n.IsRead {
		return nil
	}
	now := db.NowFunc()
	n.IsRead, n.ReadAt = true, &now
	return db.Model(n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

// MarkAsSent 幂等地标记为已推送
func (n *Notification) MarkAsSent(db *gorm.DB) error {
	if n.IsSent {
		return nil
	}
	now := db.NowFunc()
	n.IsSent, n.SentAt = true, &now
	return db.Model(n).Updates(map[string]interface{}{"is_sent": true, "sent_at": now}).Error
}
