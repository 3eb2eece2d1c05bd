package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WSConnection WebSocket 连接记录，用户还有连接时视为在线
type WSConnection struct {
	ConnectionID string    `gorm:"primaryKey;type:varchar(36)" json:"connection_id"` // 连接ID
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id"`   // 用户ID
	RemoteAddr   string    `gorm:"type:varchar(64)" json:"remote_addr"`
	ConnectedAt  time.Time `gorm:"autoCreateTime" json:"connected_at"` // 连接时间
}

func (WSConnection) TableName() string { return "ws_connections" }

func (c *WSConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ConnectionID == "" {
		c.ConnectionID = uuid.NewString()
	}
	return nil
}

// OpenConnection 记录新连接并把用户置为在线
func OpenConnection(db *gorm.DB, userID, remoteAddr string) (*WSConnection, error) {
	conn := &WSConnection{UserID: userID, RemoteAddr: remoteAddr}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conn).Error; err != nil {
			return err
		}
		return tx.Model(&User{}).Where("user_id = ?", userID).
			Updates(map[string]interface{}{"is_online": true, "last_seen": tx.NowFunc()}).Error
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// CloseConnection 删除连接记录，最后一个连接断开时用户下线
func CloseConnection(db *gorm.DB, conn *WSConnection) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&WSConnection{}, "connection_id = ?", conn.ConnectionID).Error; err != nil {
			return err
		}
		var remaining int64
		if err := tx.Model(&WSConnection{}).Where("user_id = ?", conn.UserID).Count(&remaining).Error; err != nil {
			return err
		}
		return tx.Model(&User{}).Where("user_id = ?", conn.UserID).
			Updates(map[string]interface{}{"is_online": remaining > 0, "last_seen": tx.NowFunc()}).Error
	})
}

// ResetConnections 启动时清理上次进程残留的连接记录
func ResetConnections(db *gorm.DB) error {
	if err := db.Where("1 = 1").Delete(&WSConnection{}).Error; err != nil {
		return err
	}
	return db.Model(&User{}).Where("is_online = ?", true).Update("is_online", false).Error
}
