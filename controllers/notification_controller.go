package controllers

import (
	"fmt"
	"time"

	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

// ListNotifications 未读通知，每页 20 条
func ListNotifications(c *gin.Context) {
	user := currentUser(c)
	db := dbFor(c)
	page := queryInt(c, "page", 1)
	notes, total, err := services.UnreadNotifications(db, user.UserID, page)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	now := time.Now()
	views := make([]services.NotificationView, 0, len(notes))
	for _, n := range notes {
		v, err := services.NotificationContext(db, n, now)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		views = append(views, v)
	}
	p := services.NewPage(page, 20, 20, 20)
	utils.RespondSuccess(c, gin.H{
		"notifications": views,
		"unread_count":  total,
	}, utils.NewPagination(p.Number, p.Limit, total))
}

// NotificationCount 未读通知数
func NotificationCount(c *gin.Context) {
	n, err := services.UnreadNotificationCount(dbFor(c), currentUser(c).UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"unread_count": n}, nil)
}

// MarkNotificationRead 标记单条通知已读
func MarkNotificationRead(c *gin.Context) {
	if err := services.MarkNotificationRead(dbFor(c), currentUser(c).UserID, c.Param("notification_id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"success": true}, nil)
}

// MarkAllNotificationsRead 全部标记已读
func MarkAllNotificationsRead(c *gin.Context) {
	n, err := services.MarkAllNotificationsRead(dbFor(c), currentUser(c).UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{
		"success": true,
		"message": fmt.Sprintf("Marked %d notifications as read", n),
		"count":   n,
	}, nil)
}

// MarkConversationNotificationsRead 标记某个会话的通知已读
func MarkConversationNotificationsRead(c *gin.Context) {
	n, err := services.MarkConversationNotificationsRead(dbFor(c), currentUser(c).UserID, c.Param("conversation_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"success": true, "count": n}, nil)
}
