package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"todohub/internal/api/middleware"
	"todohub/internal/api/respond"
	"todohub/internal/model"
	"todohub/internal/pkg/metrics"
	"todohub/internal/pkg/tokenblock"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler 提供注册、登录与账户管理接口。
type Handler struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration
	blocklist *tokenblock.Blocklist
	logger    *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(db *gorm.DB, jwtSecret string, tokenTTL time.Duration, blocklist *tokenblock.Blocklist, logger *slog.Logger) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Handler{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		blocklist: blocklist,
		logger:    logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=50"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// Register 创建新用户并签发 JWT。
//
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	if errs := passwordErrors("password", req.Password); len(errs) > 0 {
		respond.ValidationFailed(c, errs)
		return
	}

	email := normalizeEmail(req.Email)

	var existing model.User
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&existing).Error
	if err == nil {
		respond.Error(c, http.StatusBadRequest, "User with this email already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.Error("query user failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	user := model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hash),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		// 两个并发注册可能都通过了上面的查重，唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Error(c, http.StatusBadRequest, "User with this email already exists")
			return
		}
		h.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.logger.Info("user registered", slog.String("email", email), slog.Any("user_id", user.ID))
	respond.Data(c, http.StatusCreated, "User registered successfully", gin.H{
		"user":  user,
		"token": token,
	})
}

// Login 校验凭证并返回 JWT。
//
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	email := normalizeEmail(req.Email)

	var user model.User
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		// 未注册与密码错误返回同一响应，不暴露邮箱是否存在
		metrics.IncAuthFailure()
		respond.Error(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		metrics.IncAuthFailure()
		respond.Error(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Login failed")
		return
	}

	h.logger.Info("user logged in", slog.String("email", email))
	respond.Data(c, http.StatusOK, "Login successful", gin.H{
		"user":  user,
		"token": token,
	})
}

// Profile 返回当前用户信息。
//
// GET /api/v1/auth/profile
func (h *Handler) Profile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	respond.Data(c, http.StatusOK, "", gin.H{"user": user})
}

// UpdateProfile 更新用户名和/或邮箱。
//
// PATCH /api/v1/auth/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != user.Email {
			var existing model.User
			err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&existing).Error
			if err == nil {
				respond.Error(c, http.StatusBadRequest, "Email already in use")
				return
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				h.logger.Error("query user failed", slog.String("error", err.Error()))
				respond.Error(c, http.StatusInternalServerError, "Failed to update profile")
				return
			}
			user.Email = email
		}
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	if err := h.db.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Error(c, http.StatusBadRequest, "Email already in use")
			return
		}
		h.logger.Error("update profile failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	respond.Data(c, http.StatusOK, "Profile updated successfully", gin.H{"user": user})
}

// ChangePassword 修改密码并轮换 JWT。
//
// PATCH /api/v1/auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	if errs := passwordErrors("newPassword", req.NewPassword); len(errs) > 0 {
		respond.ValidationFailed(c, errs)
		return
	}
	// 新旧相同在任何存储操作之前拒绝
	if req.NewPassword == req.CurrentPassword {
		respond.ValidationFailed(c, []respond.FieldError{{
			Field:   "newPassword",
			Message: "New password must be different from current password",
		}})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		metrics.IncAuthFailure()
		respond.Error(c, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to change password")
		return
	}
	user.Password = string(hash)
	if err := h.db.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		h.logger.Error("update password failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to change password")
		return
	}

	// 旧 token 立即作废，换发新 token
	h.revokeCurrentToken(c)

	token, err := h.issueToken(user.ID)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to change password")
		return
	}

	h.logger.Info("password changed", slog.Any("user_id", user.ID))
	respond.Data(c, http.StatusOK, "Password changed successfully", gin.H{"token": token})
}

// Logout 注销当前 token。
//
// POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	h.revokeCurrentToken(c)
	respond.OK(c, "Logged out successfully")
}

// currentUser 加载已认证用户；加载失败时已写出响应。
func (h *Handler) currentUser(c *gin.Context) (*model.User, bool) {
	userID := middleware.UserID(c)
	var user model.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// token 合法但用户已不存在
			respond.Error(c, http.StatusUnauthorized, "Invalid token. Please log in again.")
			return nil, false
		}
		h.logger.Error("load user failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to load user")
		return nil, false
	}
	return &user, true
}

func (h *Handler) revokeCurrentToken(c *gin.Context) {
	token := middleware.Token(c)
	ttl := time.Until(middleware.TokenExpiry(c))
	if err := h.blocklist.Block(c.Request.Context(), token, ttl); err != nil {
		h.logger.Warn("revoke token failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) issueToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// passwordErrors 检查密码复杂度：至少一个大写、一个小写、一个数字。
// 长度下限由 binding 校验，这里不重复。错误里不回显密码原文。
func passwordErrors(field, password string) []respond.FieldError {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if hasUpper && hasLower && hasDigit {
		return nil
	}
	return []respond.FieldError{{
		Field:   field,
		Message: "Password must contain at least one uppercase letter, one lowercase letter, and one number",
	}}
}
