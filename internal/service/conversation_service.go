package service

import (
	"context"
	"strings"
	"time"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/pkg/es"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

// ConversationDetail 是后台查看单条会话时的完整视图，
// 消息列表已从 JSON 解码。
type ConversationDetail struct {
	Conversation model.Conversation          `json:"conversation"`
	Messages     []model.ConversationMessage `json:"messages"`
	StatusLabel  string                      `json:"statusLabel"`
}

// ConversationService 管理持久化会话转录：聊天侧负责追加，
// 客服后台负责检索与状态流转。Elasticsearch 可用时同步维护
// 全文索引，不可用时检索退化为 SQL LIKE。
type ConversationService interface {
	Start(sessionID string, lead *model.Lead) (uint, error)
	Append(ctx context.Context, sessionID string, msg model.ConversationMessage) error
	List(status string, page, pageSize int) ([]model.Conversation, int64, error)
	Get(id uint) (*ConversationDetail, error)
	Search(ctx context.Context, term, status string, limit int) ([]model.Conversation, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	Delete(ctx context.Context, id uint) error
	HistoryForEmail(email string, limit int) ([]model.Conversation, error)
	Stats() (*model.ConversationStats, error)
	StatusCounts() (map[string]int64, error)
}

type conversationService struct {
	repo  repository.ConversationRepository
	esCfg config.ElasticsearchConfig
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(repo repository.ConversationRepository, esCfg config.ElasticsearchConfig) ConversationService {
	return &conversationService{repo: repo, esCfg: esCfg}
}

// Start 为新会话建立空转录并写入索引。
func (s *conversationService) Start(sessionID string, lead *model.Lead) (uint, error) {
	id, err := s.repo.Start(sessionID, lead.ID, lead.Email, lead.FullName())
	if err != nil {
		return 0, err
	}
	s.reindex(context.Background(), id)
	return id, nil
}

// Append 向转录追加一条消息并刷新索引。
// 转录独立于会话缓存，缓存过期不影响已存档的消息。
func (s *conversationService) Append(ctx context.Context, sessionID string, msg model.ConversationMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := s.repo.AppendMessage(sessionID, msg); err != nil {
		return err
	}
	if conv, err := s.repo.GetBySession(sessionID); err == nil {
		s.reindex(ctx, conv.ID)
	}
	return nil
}

// List 分页列出会话，status 为 "all" 或空时不过滤。
func (s *conversationService) List(status string, page, pageSize int) ([]model.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.FindWithPagination(status, (page-1)*pageSize, pageSize)
}

// Get 返回带解码消息的会话详情。
func (s *conversationService) Get(id uint) (*ConversationDetail, error) {
	conv, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	messages, err := repository.DecodeMessages(conv.Messages)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{
		Conversation: *conv,
		Messages:     messages,
		StatusLabel:  model.ConversationStatuses[conv.Status],
	}, nil
}

// Search 按关键词检索会话。优先走 Elasticsearch 全文检索，
// 未启用或查询失败时回退到 SQL LIKE。
func (s *conversationService) Search(ctx context.Context, term, status string, limit int) ([]model.Conversation, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if s.esCfg.Enabled {
		ids, err := es.SearchConversations(ctx, s.esCfg.IndexName, term, status, limit)
		if err == nil {
			return s.repo.FindByIDs(ids)
		}
		log.Errorf("Elasticsearch 检索失败，回退 LIKE 查询: %v", err)
	}
	return s.repo.SearchLike(term, status, limit)
}

// UpdateStatus 由客服人工流转会话状态，并同步索引。
func (s *conversationService) UpdateStatus(ctx context.Context, id uint, status string) error {
	if err := s.repo.UpdateStatus(id, status); err != nil {
		return err
	}
	s.reindex(ctx, id)
	return nil
}

// Delete 整条删除转录并移除索引文档。
func (s *conversationService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if s.esCfg.Enabled {
		if err := es.DeleteConversation(ctx, s.esCfg.IndexName, id); err != nil {
			log.Errorf("删除会话索引文档失败: %v", err)
		}
	}
	return nil
}

// HistoryForEmail 返回某客户最近的历史会话。
func (s *conversationService) HistoryForEmail(email string, limit int) ([]model.Conversation, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.repo.FindByEmail(email, limit)
}

// Stats 返回后台面板统计。
func (s *conversationService) Stats() (*model.ConversationStats, error) {
	return s.repo.Stats()
}

// StatusCounts 返回各状态会话数。
func (s *conversationService) StatusCounts() (map[string]int64, error) {
	return s.repo.CountByStatus()
}

// reindex 重建单条会话的索引文档。索引失败只记日志，
// MySQL 中的转录始终是权威数据。
func (s *conversationService) reindex(ctx context.Context, id uint) {
	if !s.esCfg.Enabled {
		return
	}
	conv, err := s.repo.GetByID(id)
	if err != nil {
		log.Errorf("读取会话 %d 以重建索引失败: %v", id, err)
		return
	}
	messages, err := repository.DecodeMessages(conv.Messages)
	if err != nil {
		log.Errorf("解码会话 %d 的消息失败: %v", id, err)
		return
	}

	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	doc := es.ConversationDoc{
		ConversationID: conv.ID,
		SessionID:      conv.SessionID,
		CustomerName:   conv.CustomerName,
		CustomerEmail:  conv.CustomerEmail,
		Transcript:     transcript.String(),
		Status:         conv.Status,
		StartedAt:      conv.StartedAt.Format(time.RFC3339),
	}
	if err := es.IndexConversation(ctx, s.esCfg.IndexName, doc); err != nil {
		log.Errorf("写入会话 %d 的索引文档失败: %v", conv.ID, err)
	}
}
