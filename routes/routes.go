package routes

import (
	"io"
	"log/slog"

	"messaging-app/config"
	"messaging-app/controllers"
	"messaging-app/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options 路由依赖的外部组件
type Options struct {
	// RateStore 发送消息限流的计数存储，为 nil 时使用内存实现
	RateStore  middlewares.WindowStore
	RequestLog io.Writer
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(cfg *config.Config, log *slog.Logger, opts Options) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	// 配置跨域中间件
	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		// 通配来源不能和 cookies 同时使用
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))
	r.Use(middlewares.RequestLogger(log, opts.RequestLog))

	window, err := middlewares.AccessWindow(cfg.AccessWindowStart, cfg.AccessWindowEnd)
	if err != nil {
		return nil, err
	}
	r.Use(window)

	store := opts.RateStore
	if store == nil {
		store = middlewares.NewMemoryStore()
	}
	sendLimit := middlewares.SendRateLimit(store, cfg.SendRateLimit, cfg.SendRateWindow, log)

	r.GET("/ws", controllers.WSController)

	api := r.Group("/api")
	api.Use(middlewares.Throttle(cfg.ThrottleRPS, cfg.ThrottleBurst))

	api.GET("/health", controllers.Health)
	api.POST("/auth/register", controllers.Register)
	api.POST("/auth/token", controllers.ObtainToken)
	api.POST("/auth/token/refresh", controllers.RefreshToken)

	protected := api.Group("")
	protected.Use(middlewares.TokenAuthMiddleware(log))
	{
		protected.GET("/auth/profile", controllers.GetProfile)
		protected.PATCH("/auth/profile", controllers.UpdateProfile)
		protected.GET("/users", controllers.ListUsers)
		protected.GET("/users/:user_id", controllers.GetUserDetail)
	}

	conversations := protected.Group("/conversations")
	{
		conversations.GET("", controllers.ListConversations)
		conversations.POST("", controllers.CreateConversationHandler)
		conversations.GET("/:conversation_id", controllers.GetConversation)
		conversations.PATCH("/:conversation_id", controllers.UpdateConversation)
		conversations.DELETE("/:conversation_id", controllers.DeleteConversation)
		conversations.GET("/:conversation_id/messages", controllers.GetMessagesByConversationID)
		conversations.POST("/:conversation_id/send_message", sendLimit, controllers.SendMessageHandler)
		conversations.GET("/:conversation_id/threaded-messages", controllers.ThreadedMessages)
		conversations.POST("/:conversation_id/add_participant", controllers.AddParticipant)
		conversations.POST("/:conversation_id/leave", controllers.LeaveConversation)
		conversations.POST("/:conversation_id/mute", controllers.MuteConversation)
		conversations.GET("/:conversation_id/nested-messages", controllers.NestedMessages)
		conversations.POST("/:conversation_id/nested-messages", sendLimit, controllers.CreateMessage)
	}

	messages := protected.Group("/messages")
	{
		messages.GET("", controllers.ListMessages)
		messages.POST("", sendLimit, controllers.CreateMessage)
		messages.GET("/by_conversation", controllers.MessagesByConversation)
		messages.GET("/:message_id", controllers.GetMessage)
		messages.POST("/:message_id/react", controllers.ReactToMessage)
		messages.POST("/:message_id/edit", controllers.EditMessage)
		messages.DELETE("/:message_id/soft_delete", controllers.SoftDeleteMessage)
		messages.GET("/:message_id/history", controllers.MessageHistory)
		messages.POST("/:message_id/read", controllers.MarkMessageRead)
	}

	inbox := protected.Group("/inbox")
	{
		inbox.GET("/unread", controllers.UnreadInbox)
		inbox.GET("/unread_count", controllers.UnreadCount)
		inbox.GET("/summary", controllers.InboxSummary)
		inbox.POST("/conversations/:conversation_id/read", controllers.MarkConversationRead)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", controllers.ListNotifications)
		notifications.GET("/count", controllers.NotificationCount)
		notifications.POST("/mark-all-read", controllers.MarkAllNotificationsRead)
		notifications.POST("/:notification_id/read", controllers.MarkNotificationRead)
		notifications.POST("/conversation/:conversation_id/mark-read", controllers.MarkConversationNotificationsRead)
	}

	return r, nil
}
