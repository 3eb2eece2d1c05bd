package controllers

import (
	"fmt"

	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

// UnreadInbox 未读消息列表
func UnreadInbox(c *gin.Context) {
	page := pageFrom(c, 20, 50)
	views, total, err := services.UnreadMessagesFor(dbFor(c), currentUser(c).UserID, page)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{
		"messages":     views,
		"total_unread": total,
		"page":         page.Number,
		"limit":        page.Limit,
	}, nil)
}

// UnreadCount 未读消息数
func UnreadCount(c *gin.Context) {
	n, err := services.CountUnreadFor(dbFor(c), currentUser(c).UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"unread_count": n}, nil)
}

// InboxSummary 收件箱概况
func InboxSummary(c *gin.Context) {
	summary, err := services.Summarize(c.Request.Context(), dbFor(c), currentUser(c).UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, summary, nil)
}

// MarkConversationRead 把会话内的消息全部标记为已读
func MarkConversationRead(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	n, err := services.MarkConversationRead(dbFor(c), currentUser(c).UserID, conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{
		"message":         fmt.Sprintf("Marked %d messages as read", n),
		"conversation_id": conversationID,
		"count":           n,
	}, nil)
}
