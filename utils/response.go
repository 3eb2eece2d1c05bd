package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func NewPagination(page, limit int, total int64) *Pagination {
	p := &Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}

// RespondSuccess 统一的成功响应，pagination 为 nil 时省略
func RespondSuccess(c *gin.Context, data interface{}, pagination *Pagination) {
	respond(c, http.StatusOK, data, pagination)
}

// RespondCreated 创建成功
func RespondCreated(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, data, nil)
}

func respond(c *gin.Context, status int, data interface{}, pagination *Pagination) {
	body := gin.H{
		"code":    status,
		"message": "success",
		"data":    data,
	}
	if pagination != nil {
		body["pagination"] = pagination
	}
	c.JSON(status, body)
}

// RespondError 错误响应 {"error": "..."}
func RespondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
