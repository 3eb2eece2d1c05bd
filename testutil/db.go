// Package testutil 提供测试用的内存数据库和数据构造函数
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"messaging-app/config"
	"messaging-app/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const Password = "s3cret-pass"

// Logger 丢弃输出的 logger
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewDB 打开独立的内存 sqlite 并完成迁移，同时替换 config.DB
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := config.OpenDB("sqlite", dsn, Logger(), false)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	models.ResetUsernameCache()
	prev := config.DB
	config.DB = db
	t.Cleanup(func() {
		config.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser 创建用户，密码统一为 Password
func CreateUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// CreateConversation 创建会话，第一个成员为 owner（群聊）
func CreateConversation(t *testing.T, db *gorm.DB, kind string, title string, members ...models.User) models.Conversation {
	t.Helper()
	require.NotEmpty(t, members)
	conv := models.Conversation{ConversationType: kind, CreatedByID: &members[0].UserID}
	if title != "" {
		conv.Title = &title
	}
	require.NoError(t, db.Create(&conv).Error)
	for i, m := range members {
		role := models.RoleMember
		if i == 0 && kind == models.ConversationGroup {
			role = models.RoleOwner
		}
		p := models.ConversationParticipant{ConversationID: conv.ConversationID, UserID: m.UserID, Role: role}
		require.NoError(t, db.Create(&p).Error)
	}
	return conv
}

// CreateMessage 以 sender 身份发送一条文本消息
func CreateMessage(t *testing.T, db *gorm.DB, conv models.Conversation, sender models.User, body string) models.Message {
	t.Helper()
	m := models.Message{ConversationID: conv.ConversationID, SenderID: sender.UserID, MessageBody: body}
	require.NoError(t, db.Create(&m).Error)
	return m
}
