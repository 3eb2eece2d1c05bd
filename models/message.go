package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeAudio  = "audio"
	MessageTypeVideo  = "video"
	MessageTypeSystem = "system"
)

// messageTypeLabels 消息类型的展示名称
var messageTypeLabels = map[string]string{
	MessageTypeText:   "Text",
	MessageTypeImage:  "Image",
	MessageTypeFile:   "File",
	MessageTypeAudio:  "Audio",
	MessageTypeVideo:  "Video",
	MessageTypeSystem: "System Message",
}

// ValidMessageType 判断消息类型是否合法
func ValidMessageType(t string) bool {
	_, ok := messageTypeLabels[t]
	return ok
}

// RequiresAttachment 图片、文件、音视频消息必须带附件
func RequiresAttachment(t string) bool {
	switch t {
	case MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo:
		return true
	}
	return false
}

// MessageTypeLabel 返回类型展示名，未知类型原样返回
func MessageTypeLabel(t string) string {
	if label, ok := messageTypeLabels[t]; ok {
		return label
	}
	return t
}

type Message struct {
	MessageID      string     `gorm:"primaryKey;type:varchar(36)" json:"message_id"`
	ConversationID string     `gorm:"type:varchar(36);not null;index:idx_messages_conversation_sent" json:"conversation_id"`
	SenderID       string     `gorm:"type:varchar(36);not null;index" json:"sender_id"`
	MessageType    string     `gorm:"type:varchar(10);default:'text'" json:"message_type"`
	MessageBody    string     `gorm:"type:text" json:"message_body"`
	FileAttachment string     `json:"file_attachment"`
	ReplyToID      *string    `gorm:"type:varchar(36);index" json:"reply_to"`
	IsRead         bool       `gorm:"default:false;index" json:"is_read"` // 是否已读
	ReadAt         *time.Time `json:"read_at"`
	IsEdited       bool       `gorm:"default:false" json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at"`
	EditedByID     *string    `gorm:"type:varchar(36)" json:"edited_by"`
	IsDeleted      bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at"`
	SentAt         time.Time  `gorm:"autoCreateTime;index:idx_messages_conversation_sent" json:"sent_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Sender    User              `gorm:"foreignKey:SenderID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ReplyTo   *Message          `gorm:"foreignKey:ReplyToID;references:MessageID;constraint:OnDelete:SET NULL" json:"-"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	History   []MessageHistory  `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == "" {
		m.MessageID = uuid.NewString()
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	return nil
}

// MarkAsRead 标记单条消息为已读
func (m *Message) MarkAsRead(db *gorm.DB) error {
	if m.IsRead {
		return nil
	}
	now := db.NowFunc()
	m.IsRead, m.ReadAt = true, &now
	return db.Model(m).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

// SoftDelete 软删除，保留行以维持回复链
func (m *Message) SoftDelete(db *gorm.DB) error {
	now := db.NowFunc()
	m.IsDeleted, m.DeletedAt = true, &now
	return db.Model(m).Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now}).Error
}

// Edit 修改消息内容，历史记录由 BeforeUpdate 钩子写入
func (m *Message) Edit(db *gorm.DB, body string) error {
	return db.Model(m).Updates(map[string]interface{}{"message_body": body}).Error
}

// Preview 截断到 n 个字符，超出时追加 "..."
func Preview(body string, n int) string {
	r := []rune(body)
	if len(r) <= n {
		return body
	}
	return string(r[:n]) + "..."
}
