package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"messaging-app/models"
	"messaging-app/utils"

	"gorm.io/gorm"
)

type SendMessageInput struct {
	ConversationID string  `json:"conversation_id"`
	MessageType    string  `json:"message_type" validate:"omitempty,oneof=text image file audio video system"`
	MessageBody    string  `json:"message_body"`
	FileAttachment string  `json:"file_attachment" validate:"omitempty,max=500"`
	ReplyTo        *string `json:"reply_to" validate:"omitempty,uuid"`
}

func (in *SendMessageInput) check() error {
	if in.MessageType == "" {
		in.MessageType = models.MessageTypeText
	}
	if err := checkStruct(in); err != nil {
		return err
	}
	if in.MessageType == models.MessageTypeText && strings.TrimSpace(in.MessageBody) == "" {
		return invalid("text messages cannot be empty")
	}
	if models.RequiresAttachment(in.MessageType) && in.FileAttachment == "" {
		return invalid("%s messages must include a file attachment", models.MessageTypeLabel(in.MessageType))
	}
	return nil
}

// SendMessage 发送消息，通知由消息钩子生成，随后推送给在线成员
func SendMessage(db *gorm.DB, sender models.User, conversationID string, in SendMessageInput) (*models.Message, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	var conv models.Conversation
	err := db.Where("conversation_id = ? AND is_active = ?", conversationID, true).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := ActiveParticipant(db, conversationID, sender.UserID); err != nil {
		return nil, err
	}
	if in.ReplyTo != nil {
		var n int64
		if err := db.Model(&models.Message{}).
			Where("message_id = ? AND conversation_id = ?", *in.ReplyTo, conversationID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, invalid("reply_to must reference a message in the same conversation")
		}
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       sender.UserID,
		MessageType:    in.MessageType,
		MessageBody:    in.MessageBody,
		FileAttachment: in.FileAttachment,
		ReplyToID:      in.ReplyTo,
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	indexMessage(msg)
	publishMessage(db, msg)
	return &msg, nil
}

// LoadMessageView 重新加载消息及其关联并序列化
func LoadMessageView(db *gorm.DB, viewerID, messageID string) (*MessageView, error) {
	var m models.Message
	if err := preloadMessage(db).Where("message_id = ?", messageID).Take(&m).Error; err != nil {
		return nil, err
	}
	views, err := NewMessageViews(db, viewerID, []models.Message{m})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// markConversationRead 推进成员的阅读时间，并把别人发的未读消息标记为已读
func markConversationRead(db *gorm.DB, p *models.ConversationParticipant) (int64, error) {
	var flagged int64
	err := utils.WithTransaction(db.Statement.Context, db, func(tx *gorm.DB) error {
		now := tx.NowFunc()
		res := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ? AND is_deleted = ?",
				p.ConversationID, p.UserID, false, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": now})
		if res.Error != nil {
			return res.Error
		}
		flagged = res.RowsAffected
		return p.MarkAsRead(tx)
	})
	return flagged, err
}

// ListConversationMessages 会话消息，最新在前；同时把会话标记为已读
func ListConversationMessages(db *gorm.DB, userID, conversationID string, page Page) ([]MessageView, int64, error) {
	if _, err := GetConversation(db, userID, conversationID); err != nil {
		return nil, 0, err
	}
	p, err := ActiveParticipant(db, conversationID, userID)
	if err != nil {
		return nil, 0, err
	}
	if _, err := markConversationRead(db, p); err != nil {
		return nil, 0, err
	}
	scope := db.Session(&gorm.Session{NewDB: true}).Where("conversation_id = ? AND is_deleted = ?", conversationID, false)
	return pageMessages(db, userID, scope, "sent_at DESC", page)
}

func pageMessages(db *gorm.DB, viewerID string, scope *gorm.DB, order string, page Page) ([]MessageView, int64, error) {
	var total int64
	if err := db.Model(&models.Message{}).Where(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []models.Message
	if err := preloadMessage(db).Where(scope).
		Order(order).Offset(page.Offset()).Limit(page.Limit).
		Find(&msgs).Error; err != nil {
		return nil, 0, err
	}
	views, err := NewMessageViews(db, viewerID, msgs)
	return views, total, err
}

// MessageFilter 跨会话消息查询条件
type MessageFilter struct {
	ConversationID string
	Search         string
	Ordering       string
	Page           Page
}

var messageOrderings = map[string]string{
	"sent_at":     "sent_at ASC",
	"-sent_at":    "sent_at DESC",
	"updated_at":  "updated_at ASC",
	"-updated_at": "updated_at DESC",
}

// visibleMessages 用户仍参与的会话中的消息
func visibleMessages(db *gorm.DB, userID string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Where("conversation_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ? AND is_active = ?", userID, true))
}

// searchCandidates 在用户可见的会话范围内查索引
func searchCandidates(ctx context.Context, db *gorm.DB, userID, conversationID, text string) ([]string, error) {
	var convIDs []string
	q := db.Model(&models.ConversationParticipant{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if conversationID != "" {
		q = q.Where("conversation_id = ?", conversationID)
	}
	if err := q.Pluck("conversation_id", &convIDs).Error; err != nil {
		return nil, err
	}
	if convIDs == nil {
		convIDs = []string{}
	}
	return Search.Query(ctx, text, convIDs)
}

// ListMessages 用户可见的全部消息，支持全文搜索
func ListMessages(ctx context.Context, db *gorm.DB, userID string, f MessageFilter) ([]MessageView, int64, error) {
	scope := visibleMessages(db, userID).Where("is_deleted = ?", false)
	if f.ConversationID != "" {
		scope = scope.Where("conversation_id = ?", f.ConversationID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		if Search != nil {
			ids, err := searchCandidates(ctx, db, userID, f.ConversationID, s)
			switch {
			case errors.Is(err, errNoTerms):
			case err != nil:
				return nil, 0, err
			default:
				scope = scope.Where("message_id IN ?", append(ids, ""))
			}
		}
		scope = scope.Where("message_body LIKE ?", "%"+s+"%")
	}
	order, ok := messageOrderings[f.Ordering]
	if !ok {
		order = messageOrderings["-sent_at"]
	}
	return pageMessages(db, userID, scope, order, f.Page)
}

// MessagesByConversation 按会话取消息，要求 conversation_id
func MessagesByConversation(db *gorm.DB, userID, conversationID string, page Page) ([]MessageView, int64, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, 0, invalid("conversation_id parameter is required")
	}
	p, err := ActiveParticipant(db, conversationID, userID)
	if errors.Is(err, ErrNotParticipant) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	if err := p.MarkAsRead(db); err != nil {
		return nil, 0, err
	}
	scope := db.Session(&gorm.Session{NewDB: true}).Where("conversation_id = ? AND is_deleted = ?", conversationID, false)
	return pageMessages(db, userID, scope, "sent_at DESC", page)
}

// GetMessage 用户可见的单条未删除消息
func GetMessage(db *gorm.DB, userID, messageID string) (*models.Message, error) {
	var m models.Message
	err := db.Where(visibleMessages(db, userID)).
		Where("message_id = ? AND is_deleted = ?", messageID, false).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessage 只有发送者可以修改，旧内容由钩子写入历史
func EditMessage(db *gorm.DB, user models.User, messageID, body string) (*models.Message, error) {
	m, err := GetMessage(db, user.UserID, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != user.UserID {
		return nil, fmt.Errorf("%w: you can only edit your own messages", ErrForbidden)
	}
	if strings.TrimSpace(body) == "" {
		return nil, invalid("message body cannot be empty")
	}
	ctx := models.WithActor(db.Statement.Context, user.UserID)
	if err := m.Edit(db.WithContext(ctx), body); err != nil {
		return nil, err
	}
	indexMessage(*m)
	return m, nil
}

// SoftDeleteMessage 只有发送者可以删除
func SoftDeleteMessage(db *gorm.DB, user models.User, messageID string) error {
	m, err := GetMessage(db, user.UserID, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != user.UserID {
		return fmt.Errorf("%w: you can only delete your own messages", ErrForbidden)
	}
	if err := m.SoftDelete(db); err != nil {
		return err
	}
	indexMessage(*m)
	return nil
}

// MessageHistoryFor 消息的编辑历史，最近的在前
func MessageHistoryFor(db *gorm.DB, userID, messageID string) ([]models.MessageHistory, error) {
	if _, err := GetMessage(db, userID, messageID); err != nil {
		return nil, err
	}
	var history []models.MessageHistory
	err := db.Where("message_id = ?", messageID).Order("edited_at DESC").Find(&history).Error
	return history, err
}

// ToggleReaction 同类型反应已存在则取消，否则添加并通知消息发送者
func ToggleReaction(db *gorm.DB, user models.User, messageID, reactionType string) (*models.MessageReaction, bool, error) {
	emoji, ok := models.ReactionEmoji[reactionType]
	if !ok {
		return nil, false, invalid("%q is not a valid reaction type", reactionType)
	}
	m, err := GetMessage(db, user.UserID, messageID)
	if err != nil {
		return nil, false, err
	}

	var (
		reaction models.MessageReaction
		note     *models.Notification
		added    bool
	)
	err = utils.WithTransaction(db.Statement.Context, db, func(tx *gorm.DB) error {
		err := tx.Where("message_id = ? AND user_id = ? AND reaction_type = ?", messageID, user.UserID, reactionType).
			Take(&reaction).Error
		if err == nil {
			return tx.Delete(&reaction).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		reaction = models.MessageReaction{MessageID: messageID, UserID: user.UserID, ReactionType: reactionType}
		if err := tx.Create(&reaction).Error; err != nil {
			return err
		}
		added = true
		if m.SenderID == user.UserID {
			return nil
		}
		note = &models.Notification{
			RecipientID:           m.SenderID,
			SenderID:              &user.UserID,
			NotificationType:      models.NotificationReaction,
			Title:                 fmt.Sprintf("%s reacted %s to your message", user.DisplayName(), emoji),
			Message:               models.Preview(m.MessageBody, 100),
			RelatedMessageID:      &m.MessageID,
			RelatedConversationID: &m.ConversationID,
		}
		return tx.Create(note).Error
	})
	if err != nil {
		return nil, false, err
	}
	if !added {
		return nil, false, nil
	}
	if note != nil {
		publishNotifications(db, []models.Notification{*note})
	}
	reaction.User = user
	return &reaction, true, nil
}
