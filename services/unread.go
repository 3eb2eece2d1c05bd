package services

import (
	"context"
	"errors"

	"messaging-app/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// unreadFor 用户所在会话里别人发来的未读消息
func unreadFor(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&models.Message{}).
		Where(visibleMessages(db, userID)).
		Where("is_read = ? AND is_deleted = ? AND sender_id <> ?", false, false, userID)
}

// UnreadMessagesFor 收件箱：未读消息，最新在前
func UnreadMessagesFor(db *gorm.DB, userID string, page Page) ([]MessageView, int64, error) {
	total, err := CountUnreadFor(db, userID)
	if err != nil {
		return nil, 0, err
	}
	var msgs []models.Message
	if err := preloadMessage(unreadFor(db, userID)).
		Order("sent_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&msgs).Error; err != nil {
		return nil, 0, err
	}
	views, err := NewMessageViews(db, userID, msgs)
	return views, total, err
}

func CountUnreadFor(db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := unreadFor(db, userID).Count(&n).Error
	return n, err
}

// MarkMessageRead 标记单条消息已读，用户不在会话中时视为不存在
func MarkMessageRead(db *gorm.DB, userID, messageID string) error {
	var m models.Message
	err := db.Where(visibleMessages(db, userID)).Where("message_id = ?", messageID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return m.MarkAsRead(db)
}

// MarkConversationRead 把会话中别人发的消息全部标记为已读，返回标记条数
func MarkConversationRead(db *gorm.DB, userID, conversationID string) (int64, error) {
	p, err := ActiveParticipant(db, conversationID, userID)
	if errors.Is(err, ErrNotParticipant) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return markConversationRead(db, p)
}

// InboxSummary 收件箱概况
type InboxSummary struct {
	UnreadMessages          int64 `json:"unread_messages"`
	UnreadNotifications     int64 `json:"unread_notifications"`
	ConversationsWithUnread int64 `json:"conversations_with_unread"`
}

// Summarize 三个统计并发查询
func Summarize(ctx context.Context, db *gorm.DB, userID string) (*InboxSummary, error) {
	var s InboxSummary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := CountUnreadFor(db.WithContext(ctx), userID)
		s.UnreadMessages = n
		return err
	})
	g.Go(func() error {
		n, err := UnreadNotificationCount(db.WithContext(ctx), userID)
		s.UnreadNotifications = n
		return err
	})
	g.Go(func() error {
		return unreadFor(db.WithContext(ctx), userID).
			Distinct("conversation_id").
			Count(&s.ConversationsWithUnread).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}
