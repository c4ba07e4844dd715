// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

// AuthHandler 负责客服后台的登录认证。
type AuthHandler struct {
	cfg        config.AdminConfig
	jwtManager *token.JWTManager
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(cfg config.AdminConfig, jwtManager *token.JWTManager) *AuthHandler {
	return &AuthHandler{cfg: cfg, jwtManager: jwtManager}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理客服登录：校验 bcrypt 口令并签发 JWT。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "用户名和密码不能为空"})
		return
	}

	if req.Username != h.cfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)) != nil {
		log.Warnf("客服登录失败，用户名: %s", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	accessToken, err := h.jwtManager.GenerateToken(req.Username)
	if err != nil {
		log.Error("生成 token 失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 token 失败"})
		return
	}

	log.Infof("客服 %s 登录成功", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"token":    accessToken,
			"username": req.Username,
		},
	})
}
