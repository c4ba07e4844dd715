// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/metspa/woo-ai-customer-service/internal/service"
	"github.com/metspa/woo-ai-customer-service/pkg/annotate"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

// ChatHandler 负责处理聊天组件的公开接口：建会、发消息、传图。
type ChatHandler struct {
	sessionService service.SessionService
	chatService    service.ChatService
	uploadService  service.UploadService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(
	sessionService service.SessionService,
	chatService service.ChatService,
	uploadService service.UploadService,
) *ChatHandler {
	return &ChatHandler{
		sessionService: sessionService,
		chatService:    chatService,
		uploadService:  uploadService,
	}
}

// StartSessionRequest 定义了建会 API 的请求体结构。
type StartSessionRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// StartSession 处理 POST /chat/session：校验访客信息并建立会话。
func (h *ChatHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
		return
	}

	result, err := h.sessionService.Start(c.Request.Context(), service.StartRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"field":   vErr.Field,
				"message": vErr.Message,
			})
			return
		}
		log.Errorf("建立会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Unable to start chat right now"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"session_id":      result.SessionID,
		"nonce":           result.Nonce,
		"welcome_message": result.WelcomeMessage,
		"has_orders":      result.HasOrders,
	})
}

// MessageRequest 定义了发消息 API 的请求体结构。
// 会话 ID 由防伪中间件从请求头解析。
type MessageRequest struct {
	Message  string `json:"message"`
	ImageURL string `json:"image_url"`
}

// SendMessage 处理 POST /chat/message：一次完整的消息往返。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sessionID := c.GetString("session_id")

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
		return
	}

	reply, err := h.chatService.HandleMessage(c.Request.Context(), sessionID, req.Message, req.ImageURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"expired": true,
				"message": "Your chat session has expired. Please refresh to start a new conversation.",
			})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":      false,
				"rate_limited": true,
				"message":      "You've reached the message limit for this conversation. Please contact us directly for further assistance.",
			})
		case errors.Is(err, service.ErrMessageTooLong):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Message is too long. Please keep it under 2000 characters.",
			})
		default:
			var vErr *service.ValidationError
			if errors.As(err, &vErr) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": vErr.Message})
				return
			}
			log.Errorf("处理消息失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Something went wrong. Please try again."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            reply.Success,
		"message":            reply.Message,
		"segments":           annotate.Annotate(reply.Message),
		"messages_remaining": reply.MessagesRemaining,
	})
}

// UploadImage 处理 POST /chat/upload：聊天内的图片上传。
func (h *ChatHandler) UploadImage(c *gin.Context) {
	sessionID := c.GetString("session_id")

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No image provided"})
		return
	}

	url, err := h.uploadService.UploadImage(c.Request.Context(), sessionID, fileHeader)
	if err != nil {
		var rejected *service.UploadRejectedError
		if errors.As(err, &rejected) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": rejected.Message})
			return
		}
		log.Errorf("上传图片失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to upload image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"url":      url,
		"filename": fileHeader.Filename,
	})
}

// EndSession 处理 POST /chat/end：主动结束会话。
func (h *ChatHandler) EndSession(c *gin.Context) {
	sessionID := c.GetString("session_id")
	if err := h.sessionService.End(c.Request.Context(), sessionID); err != nil {
		log.Errorf("结束会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to end session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
