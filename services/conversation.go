package services

import (
	"errors"
	"fmt"
	"strings"

	"messaging-app/models"
	"messaging-app/utils"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ConversationFilter 会话列表的过滤和排序条件
type ConversationFilter struct {
	ConversationType string
	IsActive         *bool
	Search           string
	Ordering         string
}

var conversationOrderings = map[string]string{
	"updated_at":  "conversations.updated_at ASC",
	"-updated_at": "conversations.updated_at DESC",
	"created_at":  "conversations.created_at ASC",
	"-created_at": "conversations.created_at DESC",
}

// activeParticipantOf 当前用户仍在其中的会话
func activeParticipantOf(db *gorm.DB, userID string) *gorm.DB {
	return db.Where("conversations.conversation_id IN (?)",
		db.Session(&gorm.Session{NewDB: true}).Model(&models.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ? AND is_active = ?", userID, true))
}

// ListConversations 当前用户参与的会话
func ListConversations(db *gorm.DB, userID string, f ConversationFilter) ([]models.Conversation, error) {
	q := activeParticipantOf(db.Model(&models.Conversation{}), userID)
	if f.IsActive != nil {
		q = q.Where("conversations.is_active = ?", *f.IsActive)
	} else {
		q = q.Where("conversations.is_active = ?", true)
	}
	if f.ConversationType != "" {
		q = q.Where("conversations.conversation_type = ?", f.ConversationType)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("conversations.conversation_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).Table("conversation_participants AS cp").
				Select("cp.conversation_id").
				Joins("JOIN users u ON u.user_id = cp.user_id").
				Where("u.username LIKE ?", "%"+s+"%"))
	}
	order, ok := conversationOrderings[f.Ordering]
	if !ok {
		order = conversationOrderings["-updated_at"]
	}

	var convs []models.Conversation
	if err := q.Preload("CreatedBy").Order(order).Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

type CreateConversationInput struct {
	Title            *string  `json:"title" validate:"omitempty,max=255"`
	ConversationType string   `json:"conversation_type" validate:"omitempty,oneof=direct group"`
	ParticipantIDs   []string `json:"participant_ids" validate:"dive,uuid"`
}

// CreateConversation 创建会话；私聊已存在时直接返回已有会话，created 为 false
func CreateConversation(db *gorm.DB, creator models.User, in CreateConversationInput) (*models.Conversation, bool, error) {
	if in.ConversationType == "" {
		in.ConversationType = models.ConversationDirect
	}
	if err := checkStruct(in); err != nil {
		return nil, false, err
	}
	ids := lo.Uniq(lo.Without(in.ParticipantIDs, creator.UserID))
	switch in.ConversationType {
	case models.ConversationDirect:
		if len(ids) != 1 {
			return nil, false, invalid("direct messages must have exactly one other participant")
		}
	case models.ConversationGroup:
		if len(ids) < 1 {
			return nil, false, invalid("group conversations must have at least one other participant")
		}
	}

	var found int64
	if err := db.Model(&models.User{}).Where("user_id IN ?", ids).Count(&found).Error; err != nil {
		return nil, false, err
	}
	if int(found) != len(ids) {
		return nil, false, invalid("one or more participant ids are invalid")
	}

	if in.ConversationType == models.ConversationDirect {
		existing, err := findDirectConversation(db, creator.UserID, ids[0])
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	conv := models.Conversation{
		Title:            in.Title,
		ConversationType: in.ConversationType,
		CreatedByID:      &creator.UserID,
	}
	var invites []models.Notification
	err := utils.WithTransaction(db.Statement.Context, db, func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		creatorRole := models.RoleMember
		if conv.IsGroup() {
			creatorRole = models.RoleOwner
		}
		participants := []models.ConversationParticipant{{
			ConversationID: conv.ConversationID, UserID: creator.UserID, Role: creatorRole,
		}}
		for _, id := range ids {
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ConversationID, UserID: id, Role: models.RoleMember,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		if !conv.IsGroup() {
			return nil
		}
		invites = lo.Map(ids, func(id string, _ int) models.Notification {
			return inviteNotification(creator, conv, id)
		})
		return tx.Create(&invites).Error
	})
	if err != nil {
		return nil, false, err
	}
	publishNotifications(db, invites)
	return &conv, true, nil
}

func findDirectConversation(db *gorm.DB, a, b string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Model(&models.Conversation{}).
		Where("conversation_type = ? AND is_active = ?", models.ConversationDirect, true).
		Where("conversation_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", a)).
		Where("conversation_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", b)).
		Order("created_at").
		Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func inviteNotification(inviter models.User, conv models.Conversation, recipientID string) models.Notification {
	return models.Notification{
		RecipientID:           recipientID,
		SenderID:              &inviter.UserID,
		NotificationType:      models.NotificationConversationInvite,
		Title:                 fmt.Sprintf("%s added you to %s", inviter.DisplayName(), conv.TitleOr("Group Chat")),
		Message:               "You were added to a group conversation",
		RelatedConversationID: &conv.ConversationID,
	}
}

// GetConversation 仅活跃成员可以访问
func GetConversation(db *gorm.DB, userID, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Preload("CreatedBy").Where("conversation_id = ?", conversationID).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := ActiveParticipant(db, conversationID, userID); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ActiveParticipant 返回用户在会话中的成员记录
func ActiveParticipant(db *gorm.DB, conversationID, userID string) (*models.ConversationParticipant, error) {
	var p models.ConversationParticipant
	err := db.Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type UpdateConversationInput struct {
	Title    *string `json:"title" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

// UpdateConversation 群主或管理员修改会话
func UpdateConversation(db *gorm.DB, userID, conversationID string, in UpdateConversationInput) (*models.Conversation, error) {
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	conv, err := GetConversation(db, userID, conversationID)
	if err != nil {
		return nil, err
	}
	p, err := ActiveParticipant(db, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.IsGroup() && !p.CanManage() {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := db.Model(conv).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// DeleteConversation 群聊仅群主可删除，成员、消息、通知级联删除
func DeleteConversation(db *gorm.DB, userID, conversationID string) error {
	conv, err := GetConversation(db, userID, conversationID)
	if err != nil {
		return err
	}
	p, err := ActiveParticipant(db, conversationID, userID)
	if err != nil {
		return err
	}
	if conv.IsGroup() && p.Role != models.RoleOwner {
		return ErrForbidden
	}
	return db.Delete(&models.Conversation{}, "conversation_id = ?", conversationID).Error
}

// AddParticipant 群主或管理员拉人；曾经退出的成员重新激活
func AddParticipant(db *gorm.DB, actor models.User, conversationID, userID string) (*models.ConversationParticipant, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	conv, err := GetConversation(db, actor.UserID, conversationID)
	if err != nil {
		return nil, err
	}
	me, err := ActiveParticipant(db, conversationID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !me.CanManage() {
		return nil, ErrForbidden
	}
	if _, err := GetUser(db, userID); err != nil {
		return nil, err
	}

	var (
		p      models.ConversationParticipant
		invite models.Notification
	)
	err = utils.WithTransaction(db.Statement.Context, db, func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, userID).Take(&p).Error
		switch {
		case err == nil && p.IsActive:
			return ErrAlreadyParticipant
		case err == nil:
			if err := tx.Model(&p).Updates(map[string]interface{}{
				"is_active":    true,
				"role":         models.RoleMember,
				"last_read_at": tx.NowFunc(),
			}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = models.ConversationParticipant{ConversationID: conversationID, UserID: userID, Role: models.RoleMember}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		default:
			return err
		}
		invite = inviteNotification(actor, *conv, userID)
		return tx.Create(&invite).Error
	})
	if err != nil {
		return nil, err
	}
	publishNotifications(db, []models.Notification{invite})
	if err := db.Preload("User").Take(&p, "id = ?", p.ID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// LeaveConversation 退出会话，保留成员记录
func LeaveConversation(db *gorm.DB, userID, conversationID string) error {
	p, err := ActiveParticipant(db, conversationID, userID)
	if err != nil {
		return err
	}
	return db.Model(p).Update("is_active", false).Error
}

// MuteConversation 切换免打扰，返回新的状态
func MuteConversation(db *gorm.DB, userID, conversationID string) (bool, error) {
	p, err := ActiveParticipant(db, conversationID, userID)
	if err != nil {
		return false, err
	}
	muted := !p.IsMuted
	if err := db.Model(p).Update("is_muted", muted).Error; err != nil {
		return false, err
	}
	return muted, nil
}

// NewParticipantView 序列化单个成员
func NewParticipantView(db *gorm.DB, p models.ConversationParticipant) (ParticipantView, error) {
	unread, err := CountUnreadSince(db, p.ConversationID, p.UserID, p.LastReadAt)
	if err != nil {
		return ParticipantView{}, err
	}
	return ParticipantView{
		ID:          p.ID,
		User:        NewUserMinimal(p.User),
		Role:        p.Role,
		JoinedAt:    p.JoinedAt,
		LastReadAt:  p.LastReadAt,
		IsMuted:     p.IsMuted,
		IsActive:    p.IsActive,
		UnreadCount: unread,
	}, nil
}
