package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SessionNonce 为聊天会话签发防伪令牌。
// 令牌是 HMAC-SHA256(secret, sessionID) 的十六进制串，
// 随建会响应下发，之后的 /message 与 /upload 请求必须回传。
type SessionNonce struct {
	secret []byte
}

// NewSessionNonce 创建一个 SessionNonce。
func NewSessionNonce(secret string) *SessionNonce {
	return &SessionNonce{secret: []byte(secret)}
}

// Create 为指定会话 ID 生成令牌。
func (n *SessionNonce) Create(sessionID string) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 以恒定时间比较校验令牌。
func (n *SessionNonce) Verify(sessionID, nonce string) bool {
	expected := n.Create(sessionID)
	return hmac.Equal([]byte(expected), []byte(nonce))
}
