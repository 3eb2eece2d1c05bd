package middlewares

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"messaging-app/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WindowStore 滑动窗口计数存储
type WindowStore interface {
	// Hit 记录一次请求；超限时返回 false 和需要等待的时间
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error)
}

// MemoryStore 进程内的滑动窗口，按 key 保存时间戳
type MemoryStore struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	sweepAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

// sweep 删除整个窗口内都没有请求的 key
func (s *MemoryStore) sweep(window time.Duration, now time.Time) {
	for k, ts := range s.hits {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) >= window {
			delete(s.hits, k)
		}
	}
	s.sweepAt = now.Add(window)
}

func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.sweepAt) {
		s.sweep(window, now)
	}
	recent := s.hits[key][:0]
	for _, ts := range s.hits[key] {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= limit {
		s.hits[key] = recent
		return false, recent[0].Add(window).Sub(now), nil
	}
	s.hits[key] = append(recent, now)
	return true, 0, nil
}

// slidingWindowScript 原子地清理过期成员、计数并写入
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, 0}
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, tonumber(oldest[2]) + window - now}
`)

// RedisStore 基于有序集合的滑动窗口，多实例共享计数
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ratelimit:send"}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	res, err := slidingWindowScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, redis.Nil
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// ClientIP 优先取 X-Forwarded-For 的第一个地址
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}
	return "unknown"
}

// SendRateLimit 限制每个 IP 在窗口内发送消息的次数，只作用于 POST
func SendRateLimit(store WindowStore, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		allowed, wait, err := store.Hit(c.Request.Context(), ClientIP(c), limit, window, time.Now())
		if err != nil {
			// 存储不可用时放行
			log.Warn("rate limit store failed, allowing request", "client_ip", ClientIP(c), "error", err)
			c.Next()
			return
		}
		if !allowed {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			utils.RespondError(c, http.StatusTooManyRequests,
				"Rate limit exceeded. You can only send "+strconv.Itoa(limit)+" messages per "+window.String()+".")
			return
		}
		c.Next()
	}
}
