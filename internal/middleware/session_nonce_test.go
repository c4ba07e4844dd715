package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

func init() {
	log.Init("error", "console", "")
}

func nonceRouter(nonce *token.SessionNonce) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/message", SessionNonceMiddleware(nonce), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"session_id": c.GetString("session_id")})
	})
	return r
}

func TestSessionNonceAccepted(t *testing.T) {
	nonce := token.NewSessionNonce("secret")
	r := nonceRouter(nonce)

	req := httptest.NewRequest(http.MethodPost, "/message", nil)
	req.Header.Set("X-Session-Id", "s1")
	req.Header.Set("X-Chat-Nonce", nonce.Create("s1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session_id":"s1"`)
}

func TestSessionNonceRejected(t *testing.T) {
	nonce := token.NewSessionNonce("secret")
	r := nonceRouter(nonce)

	cases := []struct {
		name      string
		sessionID string
		value     string
	}{
		{"missing headers", "", ""},
		{"forged nonce", "s1", "deadbeef"},
		{"nonce for another session", "s1", nonce.Create("s2")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/message", nil)
			if c.sessionID != "" {
				req.Header.Set("X-Session-Id", c.sessionID)
			}
			if c.value != "" {
				req.Header.Set("X-Chat-Nonce", c.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}
