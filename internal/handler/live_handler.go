// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/metspa/woo-ai-customer-service/internal/service"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// LiveHandler 把聊天事件实时推送给客服后台的 WebSocket 连接。
type LiveHandler struct {
	hub        *service.EventHub
	jwtManager *token.JWTManager
}

// NewLiveHandler 创建一个新的 LiveHandler 实例。
func NewLiveHandler(hub *service.EventHub, jwtManager *token.JWTManager) *LiveHandler {
	return &LiveHandler{hub: hub, jwtManager: jwtManager}
}

// Handle 处理一个传入的后台监控 WebSocket 连接。
// 浏览器的 WebSocket API 无法自定义请求头，token 走查询参数。
func (h *LiveHandler) Handle(c *gin.Context) {
	tokenString := c.Query("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("后台监控连接已建立，客服: %s", claims.Username)

	events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(events)

	// 读循环只用于感知对端关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Warnf("推送事件到后台监控失败: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Infof("后台监控连接已断开，客服: %s", claims.Username)
			return
		}
	}
}
