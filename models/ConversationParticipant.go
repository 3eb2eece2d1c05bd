package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

type ConversationParticipant struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_conversation_user;index" json:"user_id"`
	Role           string    `gorm:"type:varchar(10);default:'member'" json:"role"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"` // 加入会话的时间
	LastReadAt     time.Time `json:"last_read_at"`                   // 最后一次阅读时间
	IsMuted        bool      `gorm:"default:false" json:"is_muted"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`

	User User `gorm:"foreignKey:UserID;references:UserID;-:migration" json:"-"`
}

func (ConversationParticipant) TableName() string { return "conversation_participants" }

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = RoleMember
	}
	if p.LastReadAt.IsZero() {
		p.LastReadAt = tx.NowFunc()
	}
	return nil
}

// CanManage owner 和 admin 可以管理成员
func (p ConversationParticipant) CanManage() bool {
	return p.Role == RoleOwner || p.Role == RoleAdmin
}

// MarkAsRead 把最后阅读时间推进到当前
func (p *ConversationParticipant) MarkAsRead(db *gorm.DB) error {
	p.LastReadAt = db.NowFunc()
	return db.Model(p).Update("last_read_at", p.LastReadAt).Error
}
