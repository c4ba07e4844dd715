package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

func init() {
	log.Init("error", "console", "")
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		BusinessName:    "Organic Skincare",
		SupportEmail:    "admin@organicskincare.com",
		SupportPhone:    "516-322-9380",
		BusinessHours:   "Mon-Fri 9am-6pm EST",
		FallbackMessage: "I'm having trouble connecting right now. Please contact us directly at {email} or call/text {phone} and we'll be happy to help!",
	}
}

func newTestClient(baseURL string, timeout time.Duration) Client {
	return NewClient(config.LLMConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "claude-haiku-4-5-20251001",
		MaxTokens:      1024,
		RequestTimeout: timeout,
	}, testChatConfig())
}

func TestSendMessage_Success(t *testing.T) {
	var gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"content":[{"text":"Hello Ana!"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5*time.Second)
	reply := c.SendMessage(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "CUSTOMER INFORMATION:")

	assert.True(t, reply.Success)
	assert.Equal(t, "Hello Ana!", reply.Text)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, "test-key", gotKey)
}

func TestSendMessage_Non200ReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5*time.Second)
	reply := c.SendMessage(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "")

	assert.False(t, reply.Success)
	assert.Contains(t, reply.Text, "admin@organicskincare.com")
	assert.Contains(t, reply.Text, "516-322-9380")
	assert.NotContains(t, reply.Text, "overloaded")
}

func TestSendMessage_TimeoutReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"content":[{"text":"too late"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 20*time.Millisecond)
	reply := c.SendMessage(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "")

	assert.False(t, reply.Success)
	require.NotEmpty(t, reply.Text)
	assert.Contains(t, reply.Text, "admin@organicskincare.com")
}

func TestSendMessage_MalformedBodyReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5*time.Second)
	reply := c.SendMessage(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "")

	assert.False(t, reply.Success)
	assert.Contains(t, reply.Text, "516-322-9380")
}

func TestSendMessage_EmptyAPIKeyReturnsFallback(t *testing.T) {
	c := NewClient(config.LLMConfig{BaseURL: "http://127.0.0.1:0", RequestTimeout: time.Second}, testChatConfig())
	reply := c.SendMessage(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "")

	assert.False(t, reply.Success)
	assert.Contains(t, reply.Text, "admin@organicskincare.com")
}

func TestBuildSystemPrompt_IncludesContextAndCustomInstructions(t *testing.T) {
	chat := testChatConfig()
	chat.CustomPrompt = "Always mention the loyalty program."
	c := NewClient(config.LLMConfig{}, chat).(*anthropicClient)

	prompt := c.BuildSystemPrompt("CUSTOMER INFORMATION:\nName: Ana Petrova")

	assert.Contains(t, prompt, "Organic Skincare")
	assert.Contains(t, prompt, "Name: Ana Petrova")
	assert.Contains(t, prompt, "ADDITIONAL INSTRUCTIONS:\nAlways mention the loyalty program.")
	assert.Contains(t, prompt, "Mon-Fri 9am-6pm EST")
}
