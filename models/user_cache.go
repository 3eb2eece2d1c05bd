package models

import (
	"errors"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"gorm.io/gorm"
)

var (
	usernameCache     *ristretto.Cache[string, string]
	usernameCacheOnce sync.Once
)

func usernames() *ristretto.Cache[string, string] {
	usernameCacheOnce.Do(func() {
		c, err := ristretto.NewCache(&ristretto.Config[string, string]{
			NumCounters: 1e5,
			MaxCost:     1 << 14,
			BufferItems: 64,
		})
		if err != nil {
			panic(err)
		}
		usernameCache = c
	})
	return usernameCache
}

// LookupUserIDByUsername 按用户名查用户 ID，结果缓存，找不到返回 ("", nil)
func LookupUserIDByUsername(db *gorm.DB, username string) (string, error) {
	if id, ok := usernames().Get(username); ok {
		return id, nil
	}
	var u User
	err := db.Select("user_id").Where("username = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	usernames().Set(username, u.UserID, 1)
	return u.UserID, nil
}

// ForgetUsername 用户名变化或用户删除后清掉缓存
func ForgetUsername(username string) {
	usernames().Del(username)
}

// ResetUsernameCache 清空缓存，切换数据库时使用
func ResetUsernameCache() {
	usernames().Clear()
}

// WaitUsernameCache 等待缓存写入生效，测试使用
func WaitUsernameCache() {
	usernames().Wait()
}
