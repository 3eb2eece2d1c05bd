package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messaging-app/config"
	"messaging-app/middlewares"
	"messaging-app/models"
	"messaging-app/routes"
	"messaging-app/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services.ConfigureAuth(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// 初始化数据库
	if err := config.InitDB(cfg, log); err != nil {
		return err
	}
	// 自动迁移
	if err := models.Migrate(config.DB); err != nil {
		return err
	}
	// 上次进程留下的连接记录已经失效
	if err := models.ResetConnections(config.DB); err != nil {
		return err
	}

	index, err := openSearchIndex(ctx, cfg, config.DB, log)
	if err != nil {
		return err
	}
	defer index.Close()
	services.Search = index

	services.Manager = services.NewWSManager(config.DB, log)
	go services.Manager.Run(ctx)

	var store middlewares.WindowStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-memory rate limit store", "addr", cfg.RedisAddr, "error", err)
		} else {
			store = middlewares.NewRedisStore(rdb)
		}
	}

	var requestLog io.Writer
	if cfg.RequestLogFile != "" {
		f, err := os.OpenFile(cfg.RequestLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		requestLog = f
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	// 注册路由
	r, err := routes.RegisterRoutes(cfg, log, routes.Options{RateStore: store, RequestLog: requestLog})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openSearchIndex 打开消息索引（未配置路径时在内存中）并从数据库重建
func openSearchIndex(ctx context.Context, cfg *config.Config, db *gorm.DB, log *slog.Logger) (*services.SearchIndex, error) {
	index, err := services.OpenSearchIndex(cfg.SearchIndexPath, log)
	if err != nil {
		return nil, err
	}
	if _, err := index.Rebuild(ctx, db); err != nil {
		_ = index.Close()
		return nil, err
	}
	return index, nil
}
