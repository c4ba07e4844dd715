// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/metspa/woo-ai-customer-service/internal/model"
)

// ErrSessionNotFound 表示会话不存在或 TTL 已过期。
// 调用方应把它呈现为“会话已过期，请重新开始”，而不是一般性错误。
var ErrSessionNotFound = errors.New("chat session not found or expired")

// SessionRepository 定义了临时会话缓存的操作接口。
// TTL 是滑动的：Save 总是把过期时间重置为构造时给定的时长。
type SessionRepository interface {
	Create(ctx context.Context, sessionID string, session *model.ChatSession) error
	Get(ctx context.Context, sessionID string) (*model.ChatSession, error)
	Save(ctx context.Context, sessionID string, session *model.ChatSession) error
	Delete(ctx context.Context, sessionID string) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个以 Redis 为后端的 SessionRepository。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("chat_session:%s", sessionID)
}

// Create 写入新会话并设置 TTL。
func (r *redisSessionRepository) Create(ctx context.Context, sessionID string, session *model.ChatSession) error {
	return r.Save(ctx, sessionID, session)
}

// Get 读取会话；键不存在（含已过期）时返回 ErrSessionNotFound。
func (r *redisSessionRepository) Get(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session model.ChatSession
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save 序列化会话并重置 TTL（滑动过期）。
func (r *redisSessionRepository) Save(ctx context.Context, sessionID string, session *model.ChatSession) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(sessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Delete 主动销毁会话。
func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.redisClient.Del(ctx, sessionKey(sessionID)).Err()
}
