package services

import (
	"errors"
	"time"

	"messaging-app/models"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"
)

const notificationsPerPage = 20

// UnreadNotifications 未读通知分页，每页 20 条
func UnreadNotifications(db *gorm.DB, userID string, page int) ([]models.Notification, int64, error) {
	p := NewPage(page, notificationsPerPage, notificationsPerPage, notificationsPerPage)
	q := db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", userID, false)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Notification
	if err := q.Preload("Sender").Preload("RelatedConversation").
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.Limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func UnreadNotificationCount(db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

// MarkNotificationRead 只能标记自己的通知
func MarkNotificationRead(db *gorm.DB, userID, notificationID string) error {
	var n models.Notification
	err := db.Where("notification_id = ? AND recipient_id = ?", notificationID, userID).Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return n.MarkAsRead(db)
}

// MarkAllNotificationsRead 返回被标记的条数
func MarkAllNotificationsRead(db *gorm.DB, userID string) (int64, error) {
	res := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": db.NowFunc()})
	return res.RowsAffected, res.Error
}

// MarkConversationNotificationsRead 标记某个会话相关的通知，要求是会话成员
func MarkConversationNotificationsRead(db *gorm.DB, userID, conversationID string) (int64, error) {
	var conv models.Conversation
	err := db.Where("conversation_id = ?", conversationID).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrForbidden
	}
	res := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND related_conversation_id = ? AND is_read = ?", userID, conversationID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": db.NowFunc()})
	return res.RowsAffected, res.Error
}

type CustomNotificationInput struct {
	RecipientID           string  `json:"recipient_id" validate:"required"`
	Title                 string  `json:"title" validate:"required,max=255"`
	Message               string  `json:"message"`
	NotificationType      string  `json:"notification_type" validate:"omitempty,oneof=new_message mention reaction conversation_invite system"`
	SenderID              *string `json:"sender_id"`
	RelatedMessageID      *string `json:"related_message_id"`
	RelatedConversationID *string `json:"related_conversation_id"`
}

// CreateCustomNotification 手动创建通知，类型默认为 system
func CreateCustomNotification(db *gorm.DB, in CustomNotificationInput) (*models.Notification, error) {
	if in.NotificationType == "" {
		in.NotificationType = models.NotificationSystem
	}
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	n := models.Notification{
		RecipientID:           in.RecipientID,
		SenderID:              in.SenderID,
		NotificationType:      in.NotificationType,
		Title:                 in.Title,
		Message:               in.Message,
		RelatedMessageID:      in.RelatedMessageID,
		RelatedConversationID: in.RelatedConversationID,
	}
	if err := db.Create(&n).Error; err != nil {
		return nil, err
	}
	publishNotifications(db, []models.Notification{n})
	return &n, nil
}

// CleanupOldNotifications 删除 days 天前已读的通知；dryRun 只统计
func CleanupOldNotifications(db *gorm.DB, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, invalid("days must not be negative")
	}
	cutoff := db.NowFunc().AddDate(0, 0, -days)
	q := db.Model(&models.Notification{}).Where("is_read = ? AND read_at < ?", true, cutoff)
	if dryRun {
		var n int64
		err := q.Count(&n).Error
		return n, err
	}
	res := q.Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// NotificationView 通知及其展示信息
type NotificationView struct {
	models.Notification
	TimeAgo          string  `json:"time_ago"`
	SenderName       string  `json:"sender_name"`
	ConversationName *string `json:"conversation_name"`
	MessagePreview   string  `json:"message_preview"`
}

// NotificationContext 补充发送者名称、会话名称和相对时间
func NotificationContext(db *gorm.DB, n models.Notification, now time.Time) (NotificationView, error) {
	v := NotificationView{
		Notification:   n,
		TimeAgo:        humanize.RelTime(n.CreatedAt, now, "ago", "from now"),
		SenderName:     "System",
		MessagePreview: n.Message,
	}
	if n.Sender != nil {
		v.SenderName = n.Sender.DisplayName()
	} else if n.SenderID != nil {
		if u, err := GetUser(db, *n.SenderID); err == nil {
			v.SenderName = u.DisplayName()
		}
	}

	conv := n.RelatedConversation
	if conv == nil && n.RelatedConversationID != nil {
		var c models.Conversation
		if err := db.Where("conversation_id = ?", *n.RelatedConversationID).Take(&c).Error; err == nil {
			conv = &c
		}
	}
	if conv == nil {
		return v, nil
	}
	if conv.IsGroup() {
		name := conv.TitleOr("Group Chat")
		v.ConversationName = &name
		return v, nil
	}
	var other models.ConversationParticipant
	err := db.Preload("User").
		Where("conversation_id = ? AND user_id <> ?", conv.ConversationID, n.RecipientID).
		Order("joined_at").
		Limit(1).Find(&other).Error
	if err != nil {
		return v, err
	}
	if other.ID != "" {
		name := other.User.DisplayName()
		v.ConversationName = &name
	}
	return v, nil
}
