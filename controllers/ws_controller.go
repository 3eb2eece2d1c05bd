package controllers

import (
	"net/http"

	"messaging-app/config"
	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

func WSController(ctx *gin.Context) {
	if services.Manager == nil {
		utils.RespondError(ctx, http.StatusServiceUnavailable, "realtime delivery is not available")
		return
	}
	services.Manager.HandleWebSocket(ctx)
}

// Health 数据库可用时返回 ok
func Health(c *gin.Context) {
	sqlDB, err := config.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	utils.RespondSuccess(c, gin.H{"status": "ok", "online": services.Manager != nil}, nil)
}
