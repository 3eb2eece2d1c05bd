package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 用户模型，登录标识为邮箱
type User struct {
	UserID         string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Username       string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email          string    `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	Password       string    `gorm:"not null" json:"-"`
	FirstName      string    `gorm:"type:varchar(150)" json:"first_name"`
	LastName       string    `gorm:"type:varchar(150)" json:"last_name"`
	PhoneNumber    *string   `gorm:"type:varchar(15)" json:"phone_number"`
	ProfilePicture string    `json:"profile_picture"`
	Bio            string    `gorm:"type:varchar(500)" json:"bio"`
	IsOnline       bool      `gorm:"default:false" json:"is_online"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 外键约束建在子表上，删除用户时级联
	Memberships []ConversationParticipant `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Reactions   []MessageReaction         `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Connections []WSConnection            `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = tx.NowFunc()
	}
	return nil
}

// FullName 返回 "名 姓"，两者都为空时返回空串
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName 优先使用全名，否则使用用户名
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}
