package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/model"
)

// fakeConvRepo 是 ConversationRepository 的内存实现。
type fakeConvRepo struct {
	convs  map[uint]*model.Conversation
	nextID uint
	liked  []string // 记录 SearchLike 的调用参数
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{convs: make(map[uint]*model.Conversation), nextID: 1}
}

func (f *fakeConvRepo) Start(sessionID string, leadID uint, email, name string) (uint, error) {
	id := f.nextID
	f.nextID++
	f.convs[id] = &model.Conversation{
		ID: id, SessionID: sessionID, LeadID: leadID,
		CustomerEmail: email, CustomerName: name,
		Messages: "[]", StartedAt: time.Now(), Status: model.ConversationStatusActive,
	}
	return id, nil
}

func (f *fakeConvRepo) AppendMessage(sessionID string, msg model.ConversationMessage) error {
	conv, err := f.GetBySession(sessionID)
	if err != nil {
		return err
	}
	var messages []model.ConversationMessage
	if err := json.Unmarshal([]byte(conv.Messages), &messages); err != nil {
		return err
	}
	messages = append(messages, msg)
	encoded, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	conv.Messages = string(encoded)
	conv.MessageCount = len(messages)
	return nil
}

func (f *fakeConvRepo) GetBySession(sessionID string) (*model.Conversation, error) {
	var latest *model.Conversation
	for _, c := range f.convs {
		if c.SessionID == sessionID && (latest == nil || c.ID > latest.ID) {
			latest = c
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeConvRepo) GetByID(id uint) (*model.Conversation, error) {
	if c, ok := f.convs[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConvRepo) FindWithPagination(status string, offset, limit int) ([]model.Conversation, int64, error) {
	var out []model.Conversation
	for _, c := range f.convs {
		if status != "" && status != "all" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (f *fakeConvRepo) FindByIDs(ids []uint) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, id := range ids {
		if c, ok := f.convs[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) FindByEmail(email string, limit int) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range f.convs {
		if c.CustomerEmail == email {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) SearchLike(term, status string, limit int) ([]model.Conversation, error) {
	f.liked = append(f.liked, term)
	return nil, nil
}

func (f *fakeConvRepo) UpdateStatus(id uint, status string) error {
	if _, ok := model.ConversationStatuses[status]; !ok {
		return assert.AnError
	}
	c, ok := f.convs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeConvRepo) Delete(id uint) error {
	delete(f.convs, id)
	return nil
}

func (f *fakeConvRepo) Stats() (*model.ConversationStats, error) {
	return &model.ConversationStats{Total: int64(len(f.convs))}, nil
}

func (f *fakeConvRepo) CountByStatus() (map[string]int64, error) {
	counts := map[string]int64{}
	for _, c := range f.convs {
		counts[c.Status]++
		counts["all"]++
	}
	return counts, nil
}

func newConvFixture() (*fakeConvRepo, ConversationService) {
	repo := newFakeConvRepo()
	// ES 关闭：检索走 LIKE 退路，索引操作为空操作
	svc := NewConversationService(repo, config.ElasticsearchConfig{Enabled: false})
	return repo, svc
}

func TestConversationAppendAndGet(t *testing.T) {
	_, svc := newConvFixture()
	lead := &model.Lead{ID: 1, FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com"}
	id, err := svc.Start("s1", lead)
	require.NoError(t, err)

	require.NoError(t, svc.Append(context.Background(), "s1", model.ConversationMessage{Role: "user", Content: "hi"}))
	require.NoError(t, svc.Append(context.Background(), "s1", model.ConversationMessage{Role: "assistant", Content: "hello"}))

	detail, err := svc.Get(id)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "hi", detail.Messages[0].Content)
	assert.False(t, detail.Messages[0].Timestamp.IsZero(), "append stamps messages without a timestamp")
	assert.Equal(t, "Active", detail.StatusLabel)
	assert.Equal(t, 2, detail.Conversation.MessageCount)
}

func TestConversationSearchFallsBackToLike(t *testing.T) {
	repo, svc := newConvFixture()

	_, err := svc.Search(context.Background(), "refund", "all", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"refund"}, repo.liked)
}

func TestConversationStatusWorkflow(t *testing.T) {
	repo, svc := newConvFixture()
	lead := &model.Lead{ID: 1, FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com"}
	id, err := svc.Start("s1", lead)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, model.ConversationStatusNeedsAttention))
	conv, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationStatusNeedsAttention, conv.Status)
}

func TestConversationDelete(t *testing.T) {
	repo, svc := newConvFixture()
	lead := &model.Lead{ID: 1, FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com"}
	id, err := svc.Start("s1", lead)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), id))
	_, err = repo.GetByID(id)
	assert.Error(t, err)
}

func TestConversationListClampsPaging(t *testing.T) {
	_, svc := newConvFixture()
	_, total, err := svc.List("all", -3, 10000)
	require.NoError(t, err)
	assert.Zero(t, total)
}
