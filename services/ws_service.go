package services

import (
	"net/http"
	"strings"
	"time"

	"messaging-app/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket 用访问令牌鉴权后升级连接，令牌来自 ?token= 或 Authorization 头
func (m *WSManager) HandleWebSocket(ctx *gin.Context) {
	raw := ctx.Query("token")
	if raw == "" {
		raw = strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	}
	claims, err := ParseAccessToken(raw)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	user, err := GetUser(m.db, claims.UserID)
	if err != nil || !user.IsActive {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", "user_id", user.UserID, "error", err)
		return
	}
	record, err := models.OpenConnection(m.db, user.UserID, ctx.ClientIP())
	if err != nil {
		m.log.Error("record websocket connection failed", "user_id", user.UserID, "error", err)
		_ = conn.Close()
		return
	}

	send := make(chan []byte, sendBuffer)
	client := &Client{
		Conn:     conn,
		Send:     send,
		ID:       user.UserID,
		LastPing: time.Now(), // 初始化心跳时间
		record:   record,
		manager:  m,
	}

	select {
	case m.register <- client:
	case <-m.done:
		_ = conn.Close()
		_ = models.CloseConnection(m.db, record)
		return
	}

	go client.ReadMessages()
	go client.WriteMessages(send)
}
