package controllers

import (
	"fmt"
	"net/http"

	"messaging-app/models"
	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

// ListMessages 当前用户可见的消息，支持 conversation、search、ordering
func ListMessages(c *gin.Context) {
	page := pageFrom(c, 50, 100)
	views, total, err := services.ListMessages(c.Request.Context(), dbFor(c), currentUser(c).UserID, services.MessageFilter{
		ConversationID: c.Query("conversation"),
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

// CreateMessage 发送消息，会话 ID 在请求体或路由中
func CreateMessage(c *gin.Context) {
	var input services.SendMessageInput
	if !bindJSON(c, &input) {
		return
	}
	if id := c.Param("conversation_id"); id != "" {
		input.ConversationID = id
	}
	if input.ConversationID == "" {
		utils.RespondError(c, http.StatusBadRequest, "conversation_id is required")
		return
	}
	user := currentUser(c)
	db := dbFor(c)
	msg, err := services.SendMessage(db, *user, input.ConversationID, input)
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

// MessagesByConversation 按 conversation_id 查询消息并标记会话已读
func MessagesByConversation(c *gin.Context) {
	page := pageFrom(c, 50, 100)
	views, total, err := services.MessagesByConversation(dbFor(c), currentUser(c).UserID, c.Query("conversation_id"), page)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, views, utils.NewPagination(page.Number, page.Limit, total))
}

// GetMessage 消息详情
func GetMessage(c *gin.Context) {
	user := currentUser(c)
	db := dbFor(c)
	msg, err := services.GetMessage(db, user.UserID, c.Param("message_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.LoadMessageView(db, user.UserID, msg.MessageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// ReactToMessage 添加或取消表情反应
func ReactToMessage(c *gin.Context) {
	var input struct {
		ReactionType string `json:"reaction_type"`
	}
	if !bindJSON(c, &input) {
		return
	}
	user := currentUser(c)
	reaction, added, err := services.ToggleReaction(dbFor(c), *user, c.Param("message_id"), input.ReactionType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !added {
		utils.RespondSuccess(c, gin.H{"message": "Reaction removed"}, nil)
		return
	}
	utils.RespondCreated(c, services.ReactionView{
		ID:            reaction.ID,
		User:          services.NewUserMinimal(*user),
		ReactionType:  reaction.ReactionType,
		ReactionEmoji: models.ReactionEmoji[reaction.ReactionType],
		CreatedAt:     reaction.CreatedAt,
	})
}

// EditMessage 修改自己发送的消息
func EditMessage(c *gin.Context) {
	var input struct {
		MessageBody string `json:"message_body"`
	}
	if !bindJSON(c, &input) {
		return
	}
	user := currentUser(c)
	db := dbFor(c)
	msg, err := services.EditMessage(db, *user, c.Param("message_id"), input.MessageBody)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := services.LoadMessageView(db, user.UserID, msg.MessageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// SoftDeleteMessage 删除自己发送的消息
func SoftDeleteMessage(c *gin.Context) {
	if err := services.SoftDeleteMessage(dbFor(c), *currentUser(c), c.Param("message_id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"message": "Message deleted successfully"}, nil)
}

// MessageHistory 编辑历史
func MessageHistory(c *gin.Context) {
	history, err := services.MessageHistoryFor(dbFor(c), currentUser(c).UserID, c.Param("message_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, history, nil)
}

// MarkMessageRead 标记单条消息已读
func MarkMessageRead(c *gin.Context) {
	if err := services.MarkMessageRead(dbFor(c), currentUser(c).UserID, c.Param("message_id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"message": fmt.Sprintf("Message %s marked as read", c.Param("message_id"))}, nil)
}
