package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/metspa/woo-ai-customer-service/internal/model"
)

// memorySessionRepository 是 SessionRepository 的进程内实现，
// 用于本地开发和测试。语义与 Redis 实现对齐：滑动 TTL、
// 过期键视同不存在、存取经过 JSON 编解码以隔离调用方持有的指针。
type memorySessionRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemorySessionRepository 创建一个内存会话存储。
func NewMemorySessionRepository(ttl time.Duration) SessionRepository {
	return NewMemorySessionRepositoryWithClock(ttl, time.Now)
}

// NewMemorySessionRepositoryWithClock 允许注入时钟，供测试推进时间。
func NewMemorySessionRepositoryWithClock(ttl time.Duration, now func() time.Time) SessionRepository {
	return &memorySessionRepository{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (r *memorySessionRepository) Create(ctx context.Context, sessionID string, session *model.ChatSession) error {
	return r.Save(ctx, sessionID, session)
}

func (r *memorySessionRepository) Get(_ context.Context, sessionID string) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if r.now().After(entry.expiresAt) {
		delete(r.entries, sessionID)
		return nil, ErrSessionNotFound
	}
	var session model.ChatSession
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *memorySessionRepository) Save(_ context.Context, sessionID string, session *model.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sessionID] = memoryEntry{data: data, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *memorySessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
	return nil
}
