package controllers

import (
	"messaging-app/services"
	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

// Register 用户注册
func Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := services.Register(dbFor(c), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondCreated(c, services.NewUserView(*user, true))
}

// ObtainToken 邮箱密码登录，返回 access 和 refresh
func ObtainToken(c *gin.Context) {
	var loginInput struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &loginInput) {
		return
	}
	pair, _, err := services.Login(dbFor(c), loginInput.Email, loginInput.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, pair, nil)
}

// RefreshToken 用 refresh 换新的 access
func RefreshToken(c *gin.Context) {
	var input struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	access, err := services.Refresh(dbFor(c), input.Refresh)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"access": access}, nil)
}

// GetProfile 当前用户资料
func GetProfile(c *gin.Context) {
	utils.RespondSuccess(c, services.NewUserView(*currentUser(c), true), nil)
}

// UpdateProfile 部分更新当前用户资料
func UpdateProfile(c *gin.Context) {
	var input services.ProfileInput
	if !bindJSON(c, &input) {
		return
	}
	user := currentUser(c)
	if err := services.UpdateProfile(dbFor(c), user, input); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, services.NewUserView(*user, true), nil)
}

// ListUsers 用户列表，支持 ?search=
func ListUsers(c *gin.Context) {
	page := pageFrom(c, 20, 100)
	users, total, err := services.ListUsers(dbFor(c), c.Query("search"), page)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	views := make([]services.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, services.NewUserView(u, false))
	}
	utils.RespondSuccess(c, views, utils.NewPagination(page.Number, page.Limit, total))
}

// GetUserDetail 按 user_id 查看用户
func GetUserDetail(c *gin.Context) {
	user, err := services.GetUser(dbFor(c), c.Param("user_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, services.NewUserView(*user, false), nil)
}
