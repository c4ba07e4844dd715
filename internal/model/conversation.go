// Package model 包含了应用的数据模型定义。
package model

import "time"

// 会话状态流转由客服人工驱动，不做超时自动迁移。
const (
	ConversationStatusActive         = "active"
	ConversationStatusNeedsAttention = "needs_attention"
	ConversationStatusWaiting        = "waiting"
	ConversationStatusResolved       = "resolved"
)

// ConversationStatuses 列出了所有合法的会话状态及其展示名。
var ConversationStatuses = map[string]string{
	ConversationStatusActive:         "Active",
	ConversationStatusNeedsAttention: "Needs Attention",
	ConversationStatusWaiting:        "Waiting for Reply",
	ConversationStatusResolved:       "Resolved",
}

// ConversationMessage 代表持久化转录中的单条消息。
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"image_url,omitempty"`
}

// Conversation 定义了 ai_chat_conversations 表的 ORM 模型。
// 转录独立于 Session 的 TTL，消息列表只追加不改写。
type Conversation struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID     string     `gorm:"type:varchar(100);not null;index" json:"sessionId"`
	LeadID        uint       `gorm:"index" json:"leadId"`
	CustomerEmail string     `gorm:"type:varchar(255);not null;index" json:"customerEmail"`
	CustomerName  string     `gorm:"type:varchar(200);not null" json:"customerName"`
	Messages      string     `gorm:"type:longtext;not null" json:"messages"` // JSON 数组
	MessageCount  int        `gorm:"default:0" json:"messageCount"`
	StartedAt     time.Time  `gorm:"index" json:"startedAt"`
	EndedAt       *time.Time `gorm:"default:null" json:"endedAt"`
	Status        string     `gorm:"type:varchar(20);default:active;index" json:"status"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "ai_chat_conversations"
}

// ConversationStats 是后台面板的会话统计数据。
type ConversationStats struct {
	Total       int64   `json:"total"`
	Today       int64   `json:"today"`
	ThisWeek    int64   `json:"thisWeek"`
	AvgMessages float64 `json:"avgMessages"`
}
