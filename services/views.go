package services

import (
	"time"

	"messaging-app/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// UserMinimal 嵌套在其他对象里的用户信息
type UserMinimal struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
	IsOnline       bool   `json:"is_online"`
}

func NewUserMinimal(u models.User) UserMinimal {
	return UserMinimal{
		UserID:         u.UserID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.DisplayName(),
		ProfilePicture: u.ProfilePicture,
		IsOnline:       u.IsOnline,
	}
}

// UserView 用户详情
type UserView struct {
	UserID         string     `json:"user_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	FullName       string     `json:"full_name"`
	PhoneNumber    *string    `json:"phone_number"`
	ProfilePicture string     `json:"profile_picture"`
	Bio            string     `json:"bio"`
	IsOnline       bool       `json:"is_online"`
	OnlineStatus   string     `json:"is_online_status"`
	LastSeen       time.Time  `json:"last_seen"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// OnlineStatus online / recently_active（5 分钟内）/ offline
func OnlineStatus(u models.User, now time.Time) string {
	if u.IsOnline {
		return "online"
	}
	if !u.LastSeen.IsZero() && u.LastSeen.After(now.Add(-5*time.Minute)) {
		return "recently_active"
	}
	return "offline"
}

func NewUserView(u models.User, withUpdated bool) UserView {
	v := UserView{
		UserID:         u.UserID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.DisplayName(),
		PhoneNumber:    u.PhoneNumber,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		IsOnline:       u.IsOnline,
		OnlineStatus:   OnlineStatus(u, time.Now()),
		LastSeen:       u.LastSeen,
		CreatedAt:      u.CreatedAt,
	}
	if withUpdated {
		updated := u.UpdatedAt
		v.UpdatedAt = &updated
	}
	return v
}

type ReactionView struct {
	ID            string      `json:"id"`
	User          UserMinimal `json:"user"`
	ReactionType  string      `json:"reaction_type"`
	ReactionEmoji string      `json:"reaction_emoji"`
	CreatedAt     time.Time   `json:"created_at"`
}

type ReactionSummary struct {
	Count int      `json:"count"`
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// MessagePreview 回复引用和会话最后一条消息的摘要
type MessagePreview struct {
	MessageID   string      `json:"message_id"`
	Sender      UserMinimal `json:"sender"`
	MessageType string      `json:"message_type"`
	MessageBody string      `json:"message_body"`
	SentAt      time.Time   `json:"sent_at"`
	IsDeleted   *bool       `json:"is_deleted,omitempty"`
}

type MessageView struct {
	MessageID       string                     `json:"message_id"`
	ConversationID  string                     `json:"conversation_id"`
	Sender          UserMinimal                `json:"sender"`
	MessageType     string                     `json:"message_type"`
	MessageBody     string                     `json:"message_body"`
	FileAttachment  string                     `json:"file_attachment"`
	FileURL         *string                    `json:"file_url"`
	ReplyTo         *string                    `json:"reply_to"`
	ReplyToMessage  *MessagePreview            `json:"reply_to_message"`
	IsEdited        bool                       `json:"is_edited"`
	EditedAt        *time.Time                 `json:"edited_at"`
	IsDeleted       bool                       `json:"is_deleted"`
	IsRead          bool                       `json:"is_read"`
	SentAt          time.Time                  `json:"sent_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	Reactions       []ReactionView             `json:"reactions"`
	ReactionSummary map[string]ReactionSummary `json:"reaction_summary"`
	RepliesCount    int64                      `json:"replies_count"`
	IsOwnMessage    bool                       `json:"is_own_message"`
}

// preloadMessage 消息序列化需要的关联
func preloadMessage(db *gorm.DB) *gorm.DB {
	return db.Preload("Sender").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Reactions.User")
}

// NewMessageViews 序列化一批已预加载关联的消息，回复数一次查询得到
func NewMessageViews(db *gorm.DB, viewerID string, msgs []models.Message) ([]MessageView, error) {
	counts := map[string]int64{}
	if len(msgs) > 0 {
		var rows []struct {
			ReplyToID string
			N         int64
		}
		ids := lo.Map(msgs, func(m models.Message, _ int) string { return m.MessageID })
		if err := db.Model(&models.Message{}).
			Select("reply_to_id, COUNT(*) AS n").
			Where("reply_to_id IN ? AND is_deleted = ?", ids, false).
			Group("reply_to_id").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			counts[r.ReplyToID] = r.N
		}
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, newMessageView(m, viewerID, counts[m.MessageID]))
	}
	return views, nil
}

func newMessageView(m models.Message, viewerID string, replies int64) MessageView {
	v := MessageView{
		MessageID:       m.MessageID,
		ConversationID:  m.ConversationID,
		Sender:          NewUserMinimal(m.Sender),
		MessageType:     m.MessageType,
		MessageBody:     m.MessageBody,
		FileAttachment:  m.FileAttachment,
		ReplyTo:         m.ReplyToID,
		IsEdited:        m.IsEdited,
		EditedAt:        m.EditedAt,
		IsDeleted:       m.IsDeleted,
		IsRead:          m.IsRead,
		SentAt:          m.SentAt,
		UpdatedAt:       m.UpdatedAt,
		Reactions:       make([]ReactionView, 0, len(m.Reactions)),
		ReactionSummary: map[string]ReactionSummary{},
		RepliesCount:    replies,
		IsOwnMessage:    m.SenderID == viewerID,
	}
	if m.FileAttachment != "" {
		url := m.FileAttachment
		v.FileURL = &url
	}
	if m.ReplyTo != nil && !m.ReplyTo.IsDeleted {
		v.ReplyToMessage = &MessagePreview{
			MessageID:   m.ReplyTo.MessageID,
			Sender:      NewUserMinimal(m.ReplyTo.Sender),
			MessageType: m.ReplyTo.MessageType,
			MessageBody: models.Preview(m.ReplyTo.MessageBody, 100),
			SentAt:      m.ReplyTo.SentAt,
		}
	}
	for _, r := range m.Reactions {
		emoji := models.ReactionEmoji[r.ReactionType]
		v.Reactions = append(v.Reactions, ReactionView{
			ID:            r.ID,
			User:          NewUserMinimal(r.User),
			ReactionType:  r.ReactionType,
			ReactionEmoji: emoji,
			CreatedAt:     r.CreatedAt,
		})
		s := v.ReactionSummary[r.ReactionType]
		s.Count++
		s.Emoji = emoji
		s.Users = append(s.Users, r.User.Username)
		v.ReactionSummary[r.ReactionType] = s
	}
	return v
}

type ParticipantView struct {
	ID          string      `json:"id"`
	User        UserMinimal `json:"user"`
	Role        string      `json:"role"`
	JoinedAt    time.Time   `json:"joined_at"`
	LastReadAt  time.Time   `json:"last_read_at"`
	IsMuted     bool        `json:"is_muted"`
	IsActive    bool        `json:"is_active"`
	UnreadCount int64       `json:"unread_count"`
}

type ConversationView struct {
	ConversationID   string            `json:"conversation_id"`
	Title            *string           `json:"title"`
	ConversationType string            `json:"conversation_type"`
	Participants     []ParticipantView `json:"participants"`
	CreatedBy        *UserMinimal      `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	IsActive         bool              `json:"is_active"`
	LastMessage      *MessagePreview   `json:"last_message"`
	UnreadCount      int64             `json:"unread_count"`
	ParticipantCount int               `json:"participant_count"`
	DisplayName      string            `json:"display_name"`
	DisplayImage     *string           `json:"display_image"`
	RecentMessages   []MessageView     `json:"recent_messages,omitempty"`
}

// NewConversationView 序列化会话，detail 为真时附带最近 20 条消息
func NewConversationView(db *gorm.DB, viewerID string, conv models.Conversation, detail bool) (*ConversationView, error) {
	var participants []models.ConversationParticipant
	if err := db.Preload("User").
		Where("conversation_id = ?", conv.ConversationID).
		Order("joined_at").
		Find(&participants).Error; err != nil {
		return nil, err
	}

	v := &ConversationView{
		ConversationID:   conv.ConversationID,
		Title:            conv.Title,
		ConversationType: conv.ConversationType,
		Participants:     make([]ParticipantView, 0, len(participants)),
		CreatedAt:        conv.CreatedAt,
		UpdatedAt:        conv.UpdatedAt,
		IsActive:         conv.IsActive,
	}
	for _, p := range participants {
		unread, err := CountUnreadSince(db, conv.ConversationID, p.UserID, p.LastReadAt)
		if err != nil {
			return nil, err
		}
		v.Participants = append(v.Participants, ParticipantView{
			ID:          p.ID,
			User:        NewUserMinimal(p.User),
			Role:        p.Role,
			JoinedAt:    p.JoinedAt,
			LastReadAt:  p.LastReadAt,
			IsMuted:     p.IsMuted,
			IsActive:    p.IsActive,
			UnreadCount: unread,
		})
		if p.UserID == viewerID {
			v.UnreadCount = unread
		}
		if p.IsActive {
			v.ParticipantCount++
		}
	}

	if conv.CreatedBy != nil {
		creator := NewUserMinimal(*conv.CreatedBy)
		v.CreatedBy = &creator
	} else if conv.CreatedByID != nil {
		if u, err := GetUser(db, *conv.CreatedByID); err == nil {
			creator := NewUserMinimal(*u)
			v.CreatedBy = &creator
		}
	}

	var last models.Message
	err := db.Preload("Sender").
		Where("conversation_id = ?", conv.ConversationID).
		Order("sent_at DESC").
		Limit(1).Find(&last).Error
	if err != nil {
		return nil, err
	}
	if last.MessageID != "" {
		deleted := last.IsDeleted
		v.LastMessage = &MessagePreview{
			MessageID:   last.MessageID,
			Sender:      NewUserMinimal(last.Sender),
			MessageType: last.MessageType,
			MessageBody: models.Preview(last.MessageBody, 100),
			SentAt:      last.SentAt,
			IsDeleted:   &deleted,
		}
	}

	v.DisplayName = "Conversation " + conv.ConversationID[:8]
	if conv.IsGroup() {
		v.DisplayName = conv.TitleOr(v.DisplayName)
	} else if other, ok := lo.Find(participants, func(p models.ConversationParticipant) bool {
		return p.UserID != viewerID
	}); ok {
		v.DisplayName = other.User.DisplayName()
		if other.User.ProfilePicture != "" {
			pic := other.User.ProfilePicture
			v.DisplayImage = &pic
		}
	}

	if detail {
		var recent []models.Message
		if err := preloadMessage(db).
			Where("conversation_id = ? AND is_deleted = ?", conv.ConversationID, false).
			Order("sent_at DESC").
			Limit(20).
			Find(&recent).Error; err != nil {
			return nil, err
		}
		views, err := NewMessageViews(db, viewerID, recent)
		if err != nil {
			return nil, err
		}
		v.RecentMessages = views
	}
	return v, nil
}

// CountUnreadSince 会话中晚于 since 且不是 userID 发送的未删除消息数
func CountUnreadSince(db *gorm.DB, conversationID, userID string, since time.Time) (int64, error) {
	var n int64
	err := db.Model(&models.Message{}).
		Where("conversation_id = ? AND sent_at > ? AND is_deleted = ? AND sender_id <> ?",
			conversationID, since, false, userID).
		Count(&n).Error
	return n, err
}
