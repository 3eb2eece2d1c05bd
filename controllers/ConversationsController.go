package controllers

import (
	"strconv"

	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

// ListConversations 当前用户参与的会话列表
func ListConversations(c *gin.Context) {
	user := currentUser(c)
	filter := services.ConversationFilter{
		ConversationType: c.Query("conversation_type"),
		Search:           c.Query("search"),
		Ordering:         c.Query("ordering"),
	}
	if v, err := strconv.ParseBool(c.Query("is_active")); err == nil {
		filter.IsActive = &v
	}

	db := dbFor(c)
	convs, err := services.ListConversations(db, user.UserID, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	views := make([]*services.ConversationView, 0, len(convs))
	for _, conv := range convs {
		v, err := services.NewConversationView(db, user.UserID, conv, false)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		views = append(views, v)
	}
	utils.RespondSuccess(c, views, nil)
}

// CreateConversationHandler 创建会话，私聊已存在时返回已有会话
func CreateConversationHandler(c *gin.Context) {
	var input services.CreateConversationInput
	if !bindJSON(c, &input) {
		return
	}
	user := currentUser(c)
	db := dbFor(c)
	conv, created, err := services.CreateConversation(db, *user, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.NewConversationView(db, user.UserID, *conv, false)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if created {
		utils.RespondCreated(c, view)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// GetConversation 会话详情，附带最近的消息
func GetConversation(c *gin.Context) {
	user := currentUser(c)
	db := dbFor(c)
	conv, err := services.GetConversation(db, user.UserID, c.Param("conversation_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.NewConversationView(db, user.UserID, *conv, true)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// UpdateConversation 修改标题或启用状态
func UpdateConversation(c *gin.Context) {
	var input services.UpdateConversationInput
	if !bindJSON(c, &input) {
		return
	}
	user := currentUser(c)
	db := dbFor(c)
	conv, err := services.UpdateConversation(db, user.UserID, c.Param("conversation_id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.NewConversationView(db, user.UserID, *conv, false)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// DeleteConversation 删除会话
func DeleteConversation(c *gin.Context) {
	if err := services.DeleteConversation(dbFor(c), currentUser(c).UserID, c.Param("conversation_id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"message": "Conversation deleted"}, nil)
}

// GetMessagesByConversationID 会话消息分页，同时标记已读
func GetMessagesByConversationID(c *gin.Context) {
	page := pageFrom(c, 50, 100)
	views, total, err := services.ListConversationMessages(dbFor(c), currentUser(c).UserID, c.Param("conversation_id"), page)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, views, utils.NewPagination(page.Number, page.Limit, total))
}

// SendMessageHandler 在会话中发送消息
func SendMessageHandler(c *gin.Context) {
	var input services.SendMessageInput
	if !bindJSON(c, &input) {
		return
	}
	user := currentUser(c)
	db := dbFor(c)
	msg, err := services.SendMessage(db, *user, c.Param("conversation_id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.LoadMessageView(db, user.UserID, msg.MessageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondCreated(c, view)
}

// ThreadedMessages 会话的回复树
func ThreadedMessages(c *gin.Context) {
	threads, err := services.ThreadedMessages(dbFor(c), currentUser(c).UserID, c.Param("conversation_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"threads": threads}, nil)
}

// AddParticipant 群主或管理员添加成员
func AddParticipant(c *gin.Context) {
	var input struct {
		UserID string `json:"user_id"`
	}
	if !bindJSON(c, &input) {
		return
	}
	db := dbFor(c)
	p, err := services.AddParticipant(db, *currentUser(c), c.Param("conversation_id"), input.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.NewParticipantView(db, *p)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondCreated(c, view)
}

// LeaveConversation 退出会话
func LeaveConversation(c *gin.Context) {
	if err := services.LeaveConversation(dbFor(c), currentUser(c).UserID, c.Param("conversation_id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"message": "Successfully left the conversation"}, nil)
}

// MuteConversation 切换免打扰
func MuteConversation(c *gin.Context) {
	muted, err := services.MuteConversation(dbFor(c), currentUser(c).UserID, c.Param("conversation_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"is_muted": muted}, nil)
}

// NestedMessages /conversations/:id/nested-messages 下的消息列表
func NestedMessages(c *gin.Context) {
	user := currentUser(c)
	db := dbFor(c)
	conversationID := c.Param("conversation_id")
	if _, err := services.GetConversation(db, user.UserID, conversationID); err != nil {
		respondServiceError(c, err)
		return
	}
	page := pageFrom(c, 50, 100)
	views, total, err := services.ListMessages(c.Request.Context(), db, user.UserID, services.MessageFilter{
		ConversationID: conversationID,
		Search:         c.Query("search"),
		Ordering:       c.Query("ordering"),
		Page:           page,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, views, utils.NewPagination(page.Number, page.Limit, total))
}
