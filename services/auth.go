package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"messaging-app/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var (
	jwtSecret  = []byte("change-me")
	accessTTL  = 60 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

// ConfigureAuth 设置签名密钥和令牌有效期
func ConfigureAuth(secret string, access, refresh time.Duration) {
	jwtSecret = []byte(secret)
	if access > 0 {
		accessTTL = access
	}
	if refresh > 0 {
		refreshTTL = refresh
	}
}

// Claims 访问令牌携带的用户信息
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsOnline  bool   `json:"is_online"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type RegisterInput struct {
	Username    string  `json:"username" validate:"required,max=150"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FirstName   string  `json:"first_name" validate:"max=150"`
	LastName    string  `json:"last_name" validate:"max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=15"`
	Bio         string  `json:"bio" validate:"max=500"`
}

// Register 注册新用户
func Register(db *gorm.DB, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	var n int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrUserExists
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		Username:    in.Username,
		Email:       in.Email,
		Password:    hashed,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.PhoneNumber,
		Bio:         in.Bio,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login 邮箱密码登录，返回访问令牌和刷新令牌
func Login(db *gorm.DB, email, password string) (*TokenPair, *models.User, error) {
	var user models.User
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive || !CheckPassword(user.Password, password) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, &user, nil
}

// IssueTokens 为用户签发一对令牌
func IssueTokens(user models.User) (*TokenPair, error) {
	access, err := signToken(user, tokenAccess, accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := signToken(user, tokenRefresh, refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func signToken(user models.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    user.UserID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsOnline:  user.IsOnline,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

func parseToken(raw, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != kind || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAccessToken 校验访问令牌
func ParseAccessToken(raw string) (*Claims, error) {
	return parseToken(raw, tokenAccess)
}

// Refresh 用刷新令牌换取新的访问令牌
func Refresh(db *gorm.DB, refresh string) (string, error) {
	claims, err := parseToken(refresh, tokenRefresh)
	if err != nil {
		return "", err
	}
	var user models.User
	if err := db.Where("user_id = ? AND is_active = ?", claims.UserID, true).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return signToken(user, tokenAccess, accessTTL)
}

type ProfileInput struct {
	Username       *string `json:"username" validate:"omitempty,min=1,max=150"`
	Email          *string `json:"email" validate:"omitempty,email"`
	FirstName      *string `json:"first_name" validate:"omitempty,max=150"`
	LastName       *string `json:"last_name" validate:"omitempty,max=150"`
	PhoneNumber    *string `json:"phone_number" validate:"omitempty,max=15"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,url"`
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
}

// UpdateProfile 部分更新当前用户资料
func UpdateProfile(db *gorm.DB, user *models.User, in ProfileInput) error {
	if err := checkStruct(in); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if in.Username != nil && *in.Username != user.Username {
		var n int64
		if err := db.Model(&models.User{}).Where("username = ? AND user_id <> ?", *in.Username, user.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUserExists
		}
		updates["username"] = *in.Username
	}
	if in.Email != nil {
		email := strings.ToLower(*in.Email)
		var n int64
		if err := db.Model(&models.User{}).Where("email = ? AND user_id <> ?", email, user.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUserExists
		}
		updates["email"] = email
	}
	if in.FirstName != nil {
		updates["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		updates["last_name"] = *in.LastName
	}
	if in.PhoneNumber != nil {
		updates["phone_number"] = *in.PhoneNumber
	}
	if in.ProfilePicture != nil {
		updates["profile_picture"] = *in.ProfilePicture
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if len(updates) == 0 {
		return nil
	}

	oldUsername := user.Username
	if err := db.Model(user).Updates(updates).Error; err != nil {
		return err
	}
	if _, ok := updates["username"]; ok {
		models.ForgetUsername(oldUsername)
	}
	return nil
}

// TouchLastSeen 更新最后活跃时间
func TouchLastSeen(db *gorm.DB, userID string) error {
	return db.Model(&models.User{}).Where("user_id = ?", userID).Update("last_seen", db.NowFunc()).Error
}

// GetUser 按 ID 查找用户
func GetUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := db.Where("user_id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers 列出所有活跃用户，按用户名排序
func ListUsers(db *gorm.DB, search string, page Page) ([]models.User, int64, error) {
	q := db.Model(&models.User{}).Where("is_active = ?", true)
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		q = q.Where("username LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	if err := q.Order("username").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
