// Package llm provides a client for the Anthropic-style messages API.
//
// The client never surfaces a transport or API error to its caller:
// any failure collapses into the operator-configured fallback message
// so the chat always gets a usable reply.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the gateway result. Success is false when the upstream call
// failed and Text carries the fallback message instead of a completion.
type Reply struct {
	Success bool
	Text    string
}

// Client defines the interface for the LLM gateway.
type Client interface {
	// SendMessage 以完整消息列表与客户上下文调用补全接口。
	// 失败时返回兜底话术，不向调用方抛错。
	SendMessage(ctx context.Context, messages []Message, contextBlock string) Reply
}

type anthropicClient struct {
	cfg    config.LLMConfig
	chat   config.ChatConfig
	client *http.Client
}

// NewClient creates a new LLM client from the given config.
func NewClient(cfg config.LLMConfig, chat config.ChatConfig) Client {
	return &anthropicClient{
		cfg:  cfg,
		chat: chat,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []Message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendMessage calls the messages endpoint with a bounded timeout.
func (c *anthropicClient) SendMessage(ctx context.Context, messages []Message, contextBlock string) Reply {
	if c.cfg.APIKey == "" {
		return c.fallback("API key not configured")
	}

	reqBody := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    c.BuildSystemPrompt(contextBlock),
		Messages:  messages,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fallback(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to read response body: %v", err))
	}

	var body messagesResponse
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return c.fallback(fmt.Sprintf("malformed response body: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := body.Error.Message
		if msg == "" {
			msg = "API request failed"
		}
		return c.fallback(fmt.Sprintf("non-200 status %d: %s", resp.StatusCode, msg))
	}

	if len(body.Content) == 0 || body.Content[0].Text == "" {
		return c.fallback("invalid API response format")
	}

	return Reply{Success: true, Text: body.Content[0].Text}
}

// fallback 记录上游错误并返回替换过占位符的兜底话术。
// 原始错误只进服务端日志，绝不透给终端用户。
func (c *anthropicClient) fallback(reason string) Reply {
	log.Errorf("LLM 调用失败: %s", reason)
	msg := c.chat.FallbackMessage
	msg = strings.ReplaceAll(msg, "{email}", c.chat.SupportEmail)
	msg = strings.ReplaceAll(msg, "{phone}", c.chat.SupportPhone)
	return Reply{Success: false, Text: msg}
}

// BuildSystemPrompt 组装系统提示词：固定的人设与政策模板、
// 客户上下文，以及可选的运营方自定义指令。
func (c *anthropicClient) BuildSystemPrompt(contextBlock string) string {
	prompt := fmt.Sprintf(`You are a helpful and friendly customer service assistant for %s, an organic skincare e-commerce store.

%s

DIRECT CONTACT INFORMATION (provide when customer needs human assistance):
- Email: %s
- Phone/Text: %s (call or text anytime)
- Business Hours: %s

YOUR CAPABILITIES:
- Answer questions about order status and tracking
- Provide tracking numbers and links when available
- Help with product inquiries (ingredients, usage, recommendations)
- Explain shipping timeframes and policies
- Assist with general questions about organic skincare
- Direct customers to contact support for complex issues

ORDER STATUS EXPLANATIONS:
- "Pending" = Order received, awaiting payment
- "Processing" = Payment received, order is being prepared for shipment
- "On Hold" = Awaiting payment confirmation or review
- "Completed" = Order has been shipped and/or delivered
- "Shipped" = Package is in transit
- "Delivered" = Package has arrived
- "Cancelled" = Order was cancelled
- "Refunded" = Payment has been returned
- "Failed" = Payment failed or was declined

GUIDELINES:
- Be warm, friendly, and professional
- Address the customer by their first name
- Reference their specific order details when relevant
- If tracking shows "in transit," reassure them and provide tracking link
- For refunds, exchanges, or complex issues, provide the direct contact info
- Never make up order information - only share what's in the context
- If you don't have information, say so and offer to connect them with support
- Keep responses concise but helpful (2-3 paragraphs maximum)
- Use simple, clear language

ESCALATION TRIGGERS (always provide contact info for these):
- Refund requests
- Order cancellation requests
- Damaged or wrong items received
- Allergic reaction concerns
- Billing disputes
- Requests to speak with a human
- Complaints or negative feedback

RESPONSE FORMAT:
- Keep responses friendly and conversational
- When sharing order details, format them clearly
- Always end with an offer to help further or provide contact info if needed`,
		c.chat.BusinessName,
		contextBlock,
		c.chat.SupportEmail,
		c.chat.SupportPhone,
		c.chat.BusinessHours,
	)

	if c.chat.CustomPrompt != "" {
		prompt += "\n\nADDITIONAL INSTRUCTIONS:\n" + c.chat.CustomPrompt
	}

	return prompt
}
