package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"messaging-app/models"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

const (
	pingInterval = 10 * time.Second // 发送 Ping 的间隔
	pongTimeout  = 15 * time.Second // 超过 15 秒未收到 Pong 断开连接
	writeTimeout = 5 * time.Second
	sendBuffer   = 64
)

// 推送给客户端的事件类型
const (
	EventMessageCreated      = "message.created"
	EventNotificationCreated = "notification.created"
	EventReadUpdated         = "read.updated"
)

type Client struct {
	Conn      *websocket.Conn
	Send      chan []byte
	ID        string // 用户ID
	LastPing  time.Time
	record    *models.WSConnection
	manager   *WSManager
	mu        sync.Mutex
	closeOnce sync.Once
}

type WSManager struct {
	clients    map[string][]*Client // 存储多个客户端连接，按 user_id 分组
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	db         *gorm.DB
	log        *slog.Logger
}

// Manager 全局连接管理器，为 nil 时不做实时推送
var Manager *WSManager

func NewWSManager(db *gorm.DB, log *slog.Logger) *WSManager {
	return &WSManager{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		db:         db,
		log:        log,
	}
}

// Event 服务端推送的帧
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundFrame 客户端发来的帧，目前只处理 updateRead
type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// Run 处理注册和注销，ctx 结束时关闭全部连接
func (m *WSManager) Run(ctx context.Context) {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = append(m.clients[client.ID], client)
			m.mu.Unlock()
			m.log.Debug("websocket client registered", "user_id", client.ID)

		case client := <-m.unregister:
			m.mu.Lock()
			clients := m.clients[client.ID]
			for i, c := range clients {
				if c == client {
					m.clients[client.ID] = append(clients[:i], clients[i+1:]...)
					break
				}
			}
			if len(m.clients[client.ID]) == 0 {
				delete(m.clients, client.ID)
			}
			m.mu.Unlock()
			client.closeSend()
			m.log.Debug("websocket client unregistered", "user_id", client.ID)

		case <-ctx.Done():
			close(m.done)
			m.mu.Lock()
			for _, clients := range m.clients {
				for _, c := range clients {
					c.closeSend()
				}
			}
			m.clients = make(map[string][]*Client)
			m.mu.Unlock()
			return
		}
	}
}

// Online 用户当前是否有连接
func (m *WSManager) Online(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID]) > 0
}

// SendToUser 推送给用户的所有连接，返回成功投递的连接数
func (m *WSManager) SendToUser(userID string, event Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		m.log.Error("marshal websocket event failed", "type", event.Type, "error", err)
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	delivered := 0
	for _, c := range m.clients[userID] {
		if c.enqueue(payload) {
			delivered++
		} else {
			m.log.Warn("websocket send buffer full, dropping event", "user_id", userID, "type", event.Type)
		}
	}
	return delivered
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Send == nil {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.Send)
		c.Send = nil
		c.mu.Unlock()
	})
}

// ReadMessages 读循环，处理 pong 和 updateRead，连接断开时注销
func (c *Client) ReadMessages() {
	m := c.manager
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.done:
		}
		_ = c.Conn.Close()
		if c.record != nil {
			if err := models.CloseConnection(m.db, c.record); err != nil {
				m.log.Warn("close websocket connection record failed", "user_id", c.ID, "error", err)
			}
		}
	}()
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "pong" {
			c.mu.Lock()
			c.LastPing = time.Now()
			c.mu.Unlock()
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			m.log.Debug("invalid websocket frame", "user_id", c.ID, "frame", string(msg))
			continue
		}
		switch frame.Type {
		case "updateRead":
			count, err := MarkConversationRead(m.db, c.ID, frame.ConversationID)
			if err != nil {
				m.log.Warn("failed to update messages as read", "user_id", c.ID, "conversation_id", frame.ConversationID, "error", err)
				continue
			}
			m.SendToUser(c.ID, Event{Type: EventReadUpdated, Data: map[string]interface{}{
				"conversation_id": frame.ConversationID,
				"count":           count,
			}})
		default:
			m.log.Debug("ignoring websocket frame", "user_id", c.ID, "type", frame.Type)
		}
	}
}

// WriteMessages 唯一的写协程：发送事件、定时 ping、检测 pong 超时
func (c *Client) WriteMessages(send <-chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			if !ok {
				_ = c.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeTimeout))
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.mu.Lock()
			last := c.LastPing
			c.mu.Unlock()
			if time.Since(last) > pongTimeout {
				c.manager.log.Info("websocket client timeout, closing connection", "user_id", c.ID)
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// publishMessage 把新消息推给其他在线成员，并推送钩子生成的通知
func publishMessage(db *gorm.DB, msg models.Message) {
	m := Manager
	if m == nil {
		return
	}
	var recipients []string
	if err := db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ? AND is_active = ?", msg.ConversationID, msg.SenderID, true).
		Pluck("user_id", &recipients).Error; err != nil {
		m.log.Warn("load message recipients failed", "message_id", msg.MessageID, "error", err)
		return
	}
	var view *MessageView
	for _, userID := range recipients {
		if !m.Online(userID) {
			continue
		}
		if view == nil {
			v, err := LoadMessageView(db, "", msg.MessageID)
			if err != nil {
				m.log.Warn("load message view failed", "message_id", msg.MessageID, "error", err)
				return
			}
			view = v
		}
		m.SendToUser(userID, Event{Type: EventMessageCreated, Data: view})
	}

	var notes []models.Notification
	if err := db.Where("related_message_id = ? AND is_sent = ?", msg.MessageID, false).Find(&notes).Error; err != nil {
		m.log.Warn("load message notifications failed", "message_id", msg.MessageID, "error", err)
		return
	}
	publishNotifications(db, notes)
}

// publishNotifications 推送通知，至少投递到一个连接的标记为已发送
func publishNotifications(db *gorm.DB, notes []models.Notification) {
	m := Manager
	if m == nil {
		return
	}
	for i := range notes {
		n := &notes[i]
		if m.SendToUser(n.RecipientID, Event{Type: EventNotificationCreated, Data: n}) == 0 {
			continue
		}
		if err := n.MarkAsSent(db); err != nil {
			m.log.Warn("mark notification sent failed", "notification_id", n.NotificationID, "error", err)
		}
	}
}
