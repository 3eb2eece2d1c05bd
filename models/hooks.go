package models

import (
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// AfterCreate 新消息落库后：刷新会话时间、给其他成员发通知、处理 @ 提及
func (m *Message) AfterCreate(tx *gorm.DB) error {
	db := tx.Session(&gorm.Session{NewDB: true})

	if err := db.Model(&Conversation{}).
		Where("conversation_id = ?", m.ConversationID).
		Update("updated_at", db.NowFunc()).Error; err != nil {
		return err
	}

	if m.MessageType == MessageTypeSystem {
		return nil
	}

	var conv Conversation
	if err := db.Where("conversation_id = ?", m.ConversationID).Take(&conv).Error; err != nil {
		return err
	}
	var sender User
	if err := db.Where("user_id = ?", m.SenderID).Take(&sender).Error; err != nil {
		return err
	}

	if err := notifyParticipants(db, m, conv, sender); err != nil {
		return err
	}
	if m.MessageType == MessageTypeText {
		return notifyMentions(db, m, sender)
	}
	return nil
}

func notifyParticipants(db *gorm.DB, m *Message, conv Conversation, sender User) error {
	var participants []ConversationParticipant
	if err := db.Where("conversation_id = ? AND user_id <> ? AND is_active = ? AND is_muted = ?",
		m.ConversationID, m.SenderID, true, false).
		Find(&participants).Error; err != nil {
		return err
	}
	if len(participants) == 0 {
		return nil
	}

	var title string
	if conv.IsGroup() {
		title = "New message in " + conv.TitleOr("Group Chat")
	} else {
		title = "New message from " + sender.DisplayName()
	}
	body := "Sent a " + strings.ToLower(MessageTypeLabel(m.MessageType))
	if m.MessageType == MessageTypeText {
		body = Preview(m.MessageBody, 100)
	}

	notifications := lo.Map(participants, func(p ConversationParticipant, _ int) Notification {
		return Notification{
			RecipientID:           p.UserID,
			SenderID:              &m.SenderID,
			NotificationType:      NotificationNewMessage,
			Title:                 title,
			Message:               body,
			RelatedMessageID:      &m.MessageID,
			RelatedConversationID: &m.ConversationID,
		}
	})
	return db.Create(&notifications).Error
}

// MentionedUsernames 提取 @用户名，去掉结尾标点并去重
func MentionedUsernames(body string) []string {
	var names []string
	for _, word := range strings.Fields(body) {
		if !strings.HasPrefix(word, "@") || len(word) < 2 {
			continue
		}
		name := strings.Trim(word[1:], ".,!?;:")
		if name != "" {
			names = append(names, name)
		}
	}
	return lo.Uniq(names)
}

func notifyMentions(db *gorm.DB, m *Message, sender User) error {
	var notifications []Notification
	for _, name := range MentionedUsernames(m.MessageBody) {
		userID, err := LookupUserIDByUsername(db, name)
		if err != nil {
			return err
		}
		if userID == "" || userID == m.SenderID {
			continue
		}
		var n int64
		if err := db.Model(&ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ? AND is_active = ?", m.ConversationID, userID, true).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		notifications = append(notifications, Notification{
			RecipientID:           userID,
			SenderID:              &m.SenderID,
			NotificationType:      NotificationMention,
			Title:                 "You were mentioned by " + sender.DisplayName(),
			Message:               "In: " + string(lo.Subset([]rune(m.MessageBody), 0, 100)) + "...",
			RelatedMessageID:      &m.MessageID,
			RelatedConversationID: &m.ConversationID,
		})
	}
	if len(notifications) == 0 {
		return nil
	}
	return db.Create(&notifications).Error
}

// BeforeUpdate 消息内容变化时保存旧内容并打上编辑标记
func (m *Message) BeforeUpdate(tx *gorm.DB) error {
	if !tx.Statement.Changed("MessageBody") {
		return nil
	}
	editor := ActorFromContext(tx.Statement.Context)
	history := MessageHistory{
		MessageID:    m.MessageID,
		PreviousBody: m.MessageBody,
		EditedByID:   editor,
	}
	if err := tx.Session(&gorm.Session{NewDB: true}).Create(&history).Error; err != nil {
		return err
	}
	tx.Statement.SetColumn("IsEdited", true)
	tx.Statement.SetColumn("EditedAt", tx.NowFunc())
	tx.Statement.SetColumn("EditedByID", editor)
	return nil
}
