// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

// SessionNonceMiddleware 校验聊天请求的防伪令牌。
// 客户端必须回传建会时下发的 X-Session-Id 与 X-Chat-Nonce 头，
// 校验通过后把会话 ID 存入上下文供处理器使用。
func SessionNonceMiddleware(nonce *token.SessionNonce) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("X-Session-Id")
		nonceValue := c.GetHeader("X-Chat-Nonce")
		if sessionID == "" || nonceValue == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Security check failed",
			})
			return
		}

		if !nonce.Verify(sessionID, nonceValue) {
			log.Warnf("会话 %s 的防伪令牌校验失败", sessionID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Security check failed",
			})
			return
		}

		c.Set("session_id", sessionID)
		c.Next()
	}
}
