package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"messaging-app/utils"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库连接，由 InitDB 初始化。
var DB *gorm.DB

// InitDB 按配置打开数据库，失败时按固定间隔重试。
func InitDB(cfg *Config, log *slog.Logger) error {
	db, err := OpenDB(cfg.DBDriver, cfg.DBDSN, log, cfg.LogSQL)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// OpenDB 打开 sqlite 或 mysql 连接。
func OpenDB(driver, dsn string, log *slog.Logger, logSQL bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	level := logger.Warn
	if logSQL {
		level = logger.Info
	}

	var db *gorm.DB
	op := func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:  NewQueryLogger(log, level),
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("database open failed, retrying", "driver", driver, "error", err, "wait", wait)
	}
	if err := utils.Retry(context.Background(), 4, 2*time.Second, op, notify); err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}

	if driver == "sqlite" {
		// sqlite 只允许一个写连接，统一串行化避免 database is locked
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// sqliteDSN 为每个连接打开外键约束，级联删除依赖它。
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// queryLogger 把 gorm 的 SQL 日志转到 slog。
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewQueryLogger 返回写入 slog 的 gorm logger。
func NewQueryLogger(log *slog.Logger, level logger.LogLevel) logger.Interface {
	return &queryLogger{log: log, level: level, slow: 200 * time.Millisecond}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.ErrorContext(ctx, "sql query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > l.slow && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WarnContext(ctx, "slow sql query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.InfoContext(ctx, "sql query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
