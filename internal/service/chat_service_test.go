package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/pkg/llm"
)

// fakeLeadRepo 是 LeadRepository 的测试桩。
type fakeLeadRepo struct {
	mu            sync.Mutex
	leads         map[string]*model.Lead
	nextID        uint
	lastContacted []uint
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[string]*model.Lead), nextID: 1}
}

func (f *fakeLeadRepo) UpsertByEmail(lead *model.Lead) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.leads[lead.Email]; ok {
		existing.FirstName = lead.FirstName
		existing.LastName = lead.LastName
		existing.Phone = lead.Phone
		existing.SessionID = lead.SessionID
		return existing.ID, nil
	}
	stored := *lead
	stored.ID = f.nextID
	f.nextID++
	f.leads[lead.Email] = &stored
	return stored.ID, nil
}

func (f *fakeLeadRepo) FindByEmail(email string) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lead, ok := f.leads[email]; ok {
		return lead, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeadRepo) FindByID(id uint) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lead := range f.leads {
		if lead.ID == id {
			return lead, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeadRepo) FindBySession(sessionID string) (*model.Lead, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeadRepo) FindWithPagination(offset, limit int) ([]model.Lead, int64, error) {
	return nil, 0, nil
}

func (f *fakeLeadRepo) Search(term string, limit int) ([]model.Lead, error) { return nil, nil }

func (f *fakeLeadRepo) UpdateLastContact(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastContacted = append(f.lastContacted, id)
	return nil
}

func (f *fakeLeadRepo) AddNote(id uint, note string) error { return nil }
func (f *fakeLeadRepo) Delete(id uint) error               { return nil }

// fakeConvService 是 ConversationService 的测试桩，记录存档的消息。
type fakeConvService struct {
	mu       sync.Mutex
	started  []string
	appended map[string][]model.ConversationMessage
	failing  bool
}

func newFakeConvService() *fakeConvService {
	return &fakeConvService{appended: make(map[string][]model.ConversationMessage)}
}

func (f *fakeConvService) Start(sessionID string, lead *model.Lead) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, sessionID)
	return uint(len(f.started)), nil
}

func (f *fakeConvService) Append(_ context.Context, sessionID string, msg model.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("archive down")
	}
	f.appended[sessionID] = append(f.appended[sessionID], msg)
	return nil
}

func (f *fakeConvService) List(status string, page, pageSize int) ([]model.Conversation, int64, error) {
	return nil, 0, nil
}
func (f *fakeConvService) Get(id uint) (*ConversationDetail, error) { return nil, nil }
func (f *fakeConvService) Search(_ context.Context, term, status string, limit int) ([]model.Conversation, error) {
	return nil, nil
}
func (f *fakeConvService) UpdateStatus(_ context.Context, id uint, status string) error { return nil }
func (f *fakeConvService) Delete(_ context.Context, id uint) error                      { return nil }
func (f *fakeConvService) HistoryForEmail(email string, limit int) ([]model.Conversation, error) {
	return nil, nil
}
func (f *fakeConvService) Stats() (*model.ConversationStats, error) { return nil, nil }
func (f *fakeConvService) StatusCounts() (map[string]int64, error)  { return nil, nil }

// fakeNotifier 记录通知调用。
type fakeNotifier struct {
	mu           sync.Mutex
	startedCount int
	messageCount int
}

func (f *fakeNotifier) NotifyConversationStarted(lead *model.Lead, sessionID string) {
	f.mu.Lock()
	f.startedCount++
	f.mu.Unlock()
}

func (f *fakeNotifier) NotifyNewMessage(lead *model.Lead, sessionID, userMessage, aiReply string) {
	f.mu.Lock()
	f.messageCount++
	f.mu.Unlock()
}

// fakeLLMClient 返回预设回复并记录收到的消息列表。
type fakeLLMClient struct {
	mu       sync.Mutex
	reply    llm.Reply
	received [][]llm.Message
}

func (f *fakeLLMClient) SendMessage(_ context.Context, messages []llm.Message, contextBlock string) llm.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	f.received = append(f.received, copied)
	return f.reply
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		BusinessName:     "Organic Skincare",
		SupportEmail:     "admin@organicskincare.com",
		SupportPhone:     "516-322-9380",
		WelcomeMessage:   "Hi {first_name}! How can I help?",
		FallbackMessage:  "Please contact us at {email} or {phone}.",
		MaxMessages:      30,
		MaxMessageLength: 2000,
		SessionTTL:       2 * time.Hour,
		NonceSecret:      "test-secret",
	}
}

type chatFixture struct {
	svc         ChatService
	sessionRepo repository.SessionRepository
	leadRepo    *fakeLeadRepo
	convSvc     *fakeConvService
	notifier    *fakeNotifier
	llmClient   *fakeLLMClient
	hub         *EventHub
	cfg         config.ChatConfig
}

func newChatFixture(cfg config.ChatConfig, sessionRepo repository.SessionRepository) *chatFixture {
	f := &chatFixture{
		sessionRepo: sessionRepo,
		leadRepo:    newFakeLeadRepo(),
		convSvc:     newFakeConvService(),
		notifier:    &fakeNotifier{},
		llmClient:   &fakeLLMClient{reply: llm.Reply{Success: true, Text: "Happy to help!"}},
		hub:         NewEventHub(),
		cfg:         cfg,
	}
	f.svc = NewChatService(cfg, sessionRepo, f.leadRepo, f.convSvc, f.llmClient, f.notifier, f.hub)
	return f
}

func seedSession(t *testing.T, repo repository.SessionRepository, sessionID string, messageCount int) {
	t.Helper()
	session := &model.ChatSession{
		LeadID:       1,
		FirstName:    "Ana",
		LastName:     "Lopez",
		Email:        "ana@example.com",
		ContextBlock: "CUSTOMER INFORMATION:\nName: Ana Lopez\n",
		Messages:     []model.SessionMessage{},
		MessageCount: messageCount,
		StartedAt:    time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), sessionID, session))
}

func TestHandleMessageSuccess(t *testing.T) {
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(testChatConfig(), repo)
	seedSession(t, repo, "s1", 0)

	reply, err := f.svc.HandleMessage(context.Background(), "s1", "Where is my order?", "")
	require.NoError(t, err)

	assert.True(t, reply.Success)
	assert.Equal(t, "Happy to help!", reply.Message)
	assert.Equal(t, 29, reply.MessagesRemaining)

	// 转录里存了这一轮的两条消息
	archived := f.convSvc.appended["s1"]
	require.Len(t, archived, 2)
	assert.Equal(t, "user", archived[0].Role)
	assert.Equal(t, "Where is my order?", archived[0].Content)
	assert.Equal(t, "assistant", archived[1].Role)
	assert.Equal(t, "Happy to help!", archived[1].Content)

	assert.Equal(t, 1, f.notifier.messageCount)
	assert.Equal(t, []uint{1}, f.leadRepo.lastContacted)

	// 会话状态已持久化
	session, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.MessageCount)
	require.Len(t, session.Messages, 2)
}

func TestHandleMessageExpiredSession(t *testing.T) {
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(testChatConfig(), repo)

	_, err := f.svc.HandleMessage(context.Background(), "missing", "hello", "")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHandleMessageRateLimit(t *testing.T) {
	cfg := testChatConfig()
	cfg.MaxMessages = 3
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(cfg, repo)
	seedSession(t, repo, "s1", 2)

	// 第 N 条仍然放行
	reply, err := f.svc.HandleMessage(context.Background(), "s1", "last one", "")
	require.NoError(t, err)
	assert.Equal(t, 0, reply.MessagesRemaining)

	// 第 N+1 条拒绝，且不触碰任何状态
	before := len(f.convSvc.appended["s1"])
	_, err = f.svc.HandleMessage(context.Background(), "s1", "one too many", "")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, f.convSvc.appended["s1"], before)

	session, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, session.MessageCount)
}

func TestHandleMessageTooLong(t *testing.T) {
	cfg := testChatConfig()
	cfg.MaxMessageLength = 10
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(cfg, repo)
	seedSession(t, repo, "s1", 0)

	_, err := f.svc.HandleMessage(context.Background(), "s1", strings.Repeat("x", 11), "")
	assert.ErrorIs(t, err, ErrMessageTooLong)

	// 超长消息不计数、不存档、不调 LLM
	session, getErr := repo.Get(context.Background(), "s1")
	require.NoError(t, getErr)
	assert.Equal(t, 0, session.MessageCount)
	assert.Empty(t, session.Messages)
	assert.Empty(t, f.convSvc.appended["s1"])
	assert.Empty(t, f.llmClient.received)
}

func TestHandleMessageEmpty(t *testing.T) {
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(testChatConfig(), repo)
	seedSession(t, repo, "s1", 0)

	_, err := f.svc.HandleMessage(context.Background(), "s1", "   ", "")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestHandleMessageFallbackStillCounts(t *testing.T) {
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(testChatConfig(), repo)
	f.llmClient.reply = llm.Reply{Success: false, Text: "Please contact us at admin@organicskincare.com or 516-322-9380."}
	seedSession(t, repo, "s1", 0)

	reply, err := f.svc.HandleMessage(context.Background(), "s1", "hello", "")
	require.NoError(t, err)

	assert.False(t, reply.Success)
	assert.Contains(t, reply.Message, "admin@organicskincare.com")

	// 兜底回复照常计数和存档
	session, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.MessageCount)
	assert.Len(t, f.convSvc.appended["s1"], 2)
}

func TestHandleMessageWithImage(t *testing.T) {
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(testChatConfig(), repo)
	seedSession(t, repo, "s1", 0)

	imageURL := "https://cdn.example.com/chat/chat-s1-1-photo.jpg"
	_, err := f.svc.HandleMessage(context.Background(), "s1", "this arrived broken", imageURL)
	require.NoError(t, err)

	// LLM 收到的是文本标记，不是裸 URL 字段
	require.Len(t, f.llmClient.received, 1)
	sent := f.llmClient.received[0]
	last := sent[len(sent)-1]
	assert.Contains(t, last.Content, "this arrived broken")
	assert.Contains(t, last.Content, "[Customer attached an image: "+imageURL+"]")

	// 转录里的用户消息保留原文与独立的图片 URL
	archived := f.convSvc.appended["s1"]
	require.Len(t, archived, 2)
	assert.Equal(t, "this arrived broken", archived[0].Content)
	assert.Equal(t, imageURL, archived[0].ImageURL)
}

func TestHandleMessageSlidingTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := repository.NewMemorySessionRepositoryWithClock(2*time.Hour, clock)
	f := newChatFixture(testChatConfig(), repo)
	seedSession(t, repo, "s1", 0)

	// 90 分钟后发消息：未过期，且 Save 重置了 TTL
	now = now.Add(90 * time.Minute)
	_, err := f.svc.HandleMessage(context.Background(), "s1", "still here", "")
	require.NoError(t, err)

	// 距上次活动又过 90 分钟（距建会 3 小时）：仍然存活
	now = now.Add(90 * time.Minute)
	_, err = f.svc.HandleMessage(context.Background(), "s1", "and again", "")
	require.NoError(t, err)

	// 静默超过 2 小时后过期
	now = now.Add(2*time.Hour + time.Minute)
	_, err = f.svc.HandleMessage(context.Background(), "s1", "too late", "")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHandleMessagePublishesEvents(t *testing.T) {
	repo := repository.NewMemorySessionRepository(2 * time.Hour)
	f := newChatFixture(testChatConfig(), repo)
	seedSession(t, repo, "s1", 0)

	ch := f.hub.Subscribe()
	defer f.hub.Unsubscribe(ch)

	_, err := f.svc.HandleMessage(context.Background(), "s1", "hello", "")
	require.NoError(t, err)

	first := <-ch
	second := <-ch
	assert.Equal(t, "user_message", first.Type)
	assert.Equal(t, "hello", first.Content)
	assert.Equal(t, "assistant_message", second.Type)
	assert.Equal(t, "Ana Lopez", first.CustomerName)
}
