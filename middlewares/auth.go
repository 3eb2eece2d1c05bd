package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"messaging-app/config"
	"messaging-app/models"
	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

// TokenAuthMiddleware 校验 Bearer 访问令牌，把当前用户放进上下文
func TokenAuthMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			utils.RespondError(c, http.StatusUnauthorized, "Authentication credentials were not provided")
			return
		}
		claims, err := services.ParseAccessToken(strings.TrimSpace(raw))
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, err.Error())
			return
		}

		db := config.DB.WithContext(c.Request.Context())
		user, err := services.GetUser(db, claims.UserID)
		if errors.Is(err, services.ErrNotFound) || (err == nil && !user.IsActive) {
			utils.RespondError(c, http.StatusUnauthorized, "User not found or inactive")
			return
		}
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, "Failed to load user")
			return
		}
		if err := services.TouchLastSeen(db, user.UserID); err != nil {
			log.Warn("update last_seen failed", "user_id", user.UserID, "error", err)
		}

		c.Set("user", user)
		c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), user.UserID))
		c.Next()
	}
}

// CurrentUser 取出 TokenAuthMiddleware 放入的用户
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
