package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"messaging-app/config"
	"messaging-app/middlewares"
	"messaging-app/models"
	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// dbFor 带请求上下文的数据库句柄，钩子可以从中取到当前用户
func dbFor(c *gin.Context) *gorm.DB {
	return config.DB.WithContext(c.Request.Context())
}

func currentUser(c *gin.Context) *models.User {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		// 路由配置错误才会走到这里
		panic("controllers: handler mounted without TokenAuthMiddleware")
	}
	return user
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func pageFrom(c *gin.Context, def, max int) services.Page {
	return services.NewPage(queryInt(c, "page", 1), queryInt(c, "limit", def), def, max)
}

// respondServiceError 把服务层错误映射为 HTTP 状态码
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": "))
	case errors.Is(err, services.ErrAlreadyParticipant):
		utils.RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		utils.RespondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotParticipant):
		utils.RespondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrForbidden):
		msg := strings.TrimPrefix(err.Error(), services.ErrForbidden.Error()+": ")
		utils.RespondError(c, http.StatusForbidden, msg)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, "Not found.")
	case errors.Is(err, services.ErrUserExists):
		utils.RespondError(c, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bindJSON 绑定失败时直接返回 400
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
