package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config 聚合整个服务的配置项，全部来自环境变量。
type Config struct {
	Port string `env:"PORT,default=8082"`

	DBDriver string `env:"DB_DRIVER,default=sqlite"`
	DBDSN    string `env:"DB_DSN,default=messaging.db"`

	JWTSecret       string        `env:"JWT_SECRET,default=change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=60m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`

	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogSQL         bool   `env:"LOG_SQL,default=false"`
	RequestLogFile string `env:"REQUEST_LOG_FILE"`

	// 为空表示不限制访问时间段，格式 HH:MM
	AccessWindowStart string `env:"ACCESS_WINDOW_START"`
	AccessWindowEnd   string `env:"ACCESS_WINDOW_END"`

	SendRateLimit  int           `env:"SEND_RATE_LIMIT,default=5"`
	SendRateWindow time.Duration `env:"SEND_RATE_WINDOW,default=60s"`
	ThrottleRPS    float64       `env:"THROTTLE_RPS,default=0"`
	ThrottleBurst  int           `env:"THROTTLE_BURST,default=20"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`

	SearchIndexPath string `env:"SEARCH_INDEX_PATH"`
	CORSOrigins     string `env:"CORS_ORIGINS,default=*"`

	NotificationRetentionDays int `env:"NOTIFICATION_RETENTION_DAYS,default=30"`
}

// Load 先读取 .env（不存在时仅告警），再解析环境变量。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, continuing with system environment", "error", err)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnviron 从给定的环境变量集合解析配置。
func FromEnviron(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("invalid DB_DRIVER value %q", c.DBDriver)
	}
	if strings.Contains(c.Port, " ") {
		return fmt.Errorf("invalid PORT value: %q", c.Port)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if (c.AccessWindowStart == "") != (c.AccessWindowEnd == "") {
		return fmt.Errorf("ACCESS_WINDOW_START and ACCESS_WINDOW_END must be set together")
	}
	if c.SendRateLimit < 0 {
		return fmt.Errorf("invalid SEND_RATE_LIMIT value %d", c.SendRateLimit)
	}
	return nil
}

// Addr 返回监听地址，允许直接传入 ":8082" 或 "127.0.0.1:8082"。
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// AllowedOrigins 解析逗号分隔的跨域白名单。
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// NewLogger 根据 LOG_LEVEL 构造 slog.Logger。
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
