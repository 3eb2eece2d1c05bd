package models

import "gorm.io/gorm"

// Migrate 自动迁移全部表结构，顺序按外键依赖排列
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
		&MessageReaction{},
		&MessageHistory{},
		&Notification{},
		&WSConnection{},
	)
}
