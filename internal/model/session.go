// Package model 包含了应用的数据模型定义。
package model

import "time"

// SessionMessage 代表会话内存消息列表中的单条消息，
// 发送给 LLM 时按原样序列化。
type SessionMessage struct {
	Role    string `json:"role"` // "user" 或 "assistant"
	Content string `json:"content"`
}

// ChatSession 代表以 JSON 形式存储在 Redis 中的临时会话。
// 键为不透明的 UUID，TTL 为滑动 2 小时，每次成功发消息后重置。
type ChatSession struct {
	LeadID       uint             `json:"lead_id"`
	FirstName    string           `json:"first_name"`
	LastName     string           `json:"last_name"`
	Email        string           `json:"email"`
	Phone        string           `json:"phone"`
	ContextBlock string           `json:"context_block"`
	Messages     []SessionMessage `json:"messages"`
	MessageCount int              `json:"message_count"` // 仅统计用户消息
	StartedAt    time.Time        `json:"started_at"`
}
