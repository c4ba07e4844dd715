// Package repository 提供了数据访问层的实现。
package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/metspa/woo-ai-customer-service/internal/model"
)

// ConversationRepository 定义了持久化会话转录的操作接口。
// 消息列表只追加；除整条删除外不会改写或重排历史。
type ConversationRepository interface {
	Start(sessionID string, leadID uint, email, name string) (uint, error)
	AppendMessage(sessionID string, msg model.ConversationMessage) error
	GetBySession(sessionID string) (*model.Conversation, error)
	GetByID(id uint) (*model.Conversation, error)
	FindWithPagination(status string, offset, limit int) ([]model.Conversation, int64, error)
	FindByIDs(ids []uint) ([]model.Conversation, error)
	FindByEmail(email string, limit int) ([]model.Conversation, error)
	SearchLike(term, status string, limit int) ([]model.Conversation, error)
	UpdateStatus(id uint, status string) error
	Delete(id uint) error
	Stats() (*model.ConversationStats, error)
	CountByStatus() (map[string]int64, error)
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Start 为新会话创建一条空转录记录。
func (r *conversationRepository) Start(sessionID string, leadID uint, email, name string) (uint, error) {
	conv := model.Conversation{
		SessionID:     sessionID,
		LeadID:        leadID,
		CustomerEmail: email,
		CustomerName:  name,
		Messages:      "[]",
		MessageCount:  0,
		StartedAt:     time.Now(),
		Status:        model.ConversationStatusActive,
	}
	if err := r.db.Create(&conv).Error; err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// AppendMessage 将一条消息追加到会话转录末尾并刷新计数。
func (r *conversationRepository) AppendMessage(sessionID string, msg model.ConversationMessage) error {
	conv, err := r.GetBySession(sessionID)
	if err != nil {
		return err
	}

	messages, err := DecodeMessages(conv.Messages)
	if err != nil {
		return fmt.Errorf("failed to decode conversation messages: %w", err)
	}
	messages = append(messages, msg)

	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation messages: %w", err)
	}

	now := time.Now()
	return r.db.Model(&model.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
		"messages":      string(encoded),
		"message_count": len(messages),
		"ended_at":      now,
	}).Error
}

// GetBySession 根据会话 ID 获取最近一条转录。
func (r *conversationRepository) GetBySession(sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Where("session_id = ?", sessionID).Order("id DESC").First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetByID 根据主键获取转录。
func (r *conversationRepository) GetByID(id uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.First(&conv, id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindWithPagination 分页检索转录，status 为 "all" 或空时不过滤。
func (r *conversationRepository) FindWithPagination(status string, offset, limit int) ([]model.Conversation, int64, error) {
	var convs []model.Conversation
	var total int64

	db := r.db.Model(&model.Conversation{})
	if status != "" && status != "all" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("started_at DESC").Offset(offset).Limit(limit).Find(&convs).Error; err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

// FindByIDs 按主键集合取回转录，保持入参顺序（供 ES 命中结果回表）。
func (r *conversationRepository) FindByIDs(ids []uint) ([]model.Conversation, error) {
	if len(ids) == 0 {
		return []model.Conversation{}, nil
	}
	var convs []model.Conversation
	if err := r.db.Where("id IN ?", ids).Find(&convs).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Conversation, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
	}
	ordered := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// FindByEmail 检索某个客户的历史会话。
func (r *conversationRepository) FindByEmail(email string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.Where("customer_email = ?", email).
		Order("started_at DESC").Limit(limit).Find(&convs).Error
	return convs, err
}

// SearchLike 用 SQL LIKE 做关键词检索，是 ES 不可用时的退路。
func (r *conversationRepository) SearchLike(term, status string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	like := "%" + term + "%"
	db := r.db.Where("customer_name LIKE ? OR customer_email LIKE ? OR messages LIKE ?", like, like, like)
	if status != "" && status != "all" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("started_at DESC").Limit(limit).Find(&convs).Error
	return convs, err
}

// UpdateStatus 修改会话状态；置为 resolved 时同时写入 ended_at。
func (r *conversationRepository) UpdateStatus(id uint, status string) error {
	if _, ok := model.ConversationStatuses[status]; !ok {
		return fmt.Errorf("invalid conversation status: %s", status)
	}
	updates := map[string]interface{}{"status": status}
	if status == model.ConversationStatusResolved {
		updates["ended_at"] = time.Now()
	}
	return r.db.Model(&model.Conversation{}).Where("id = ?", id).Updates(updates).Error
}

// Delete 整条删除会话转录。
func (r *conversationRepository) Delete(id uint) error {
	return r.db.Delete(&model.Conversation{}, id).Error
}

// Stats 返回后台面板的汇总统计。
func (r *conversationRepository) Stats() (*model.ConversationStats, error) {
	var stats model.ConversationStats

	if err := r.db.Model(&model.Conversation{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	today := time.Now().Truncate(24 * time.Hour)
	if err := r.db.Model(&model.Conversation{}).
		Where("started_at >= ?", today).Count(&stats.Today).Error; err != nil {
		return nil, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := r.db.Model(&model.Conversation{}).
		Where("started_at >= ?", weekAgo).Count(&stats.ThisWeek).Error; err != nil {
		return nil, err
	}

	var avg *float64
	if err := r.db.Model(&model.Conversation{}).
		Where("message_count > 0").
		Select("AVG(message_count)").Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg != nil {
		stats.AvgMessages = *avg
	}
	return &stats, nil
}

// CountByStatus 返回各状态的会话数量。
func (r *conversationRepository) CountByStatus() (map[string]int64, error) {
	counts := make(map[string]int64, len(model.ConversationStatuses)+1)
	var all int64
	for status := range model.ConversationStatuses {
		var n int64
		if err := r.db.Model(&model.Conversation{}).Where("status = ?", status).Count(&n).Error; err != nil {
			return nil, err
		}
		counts[status] = n
		all += n
	}
	counts["all"] = all
	return counts, nil
}

// DecodeMessages 反序列化转录中的消息 JSON 数组。
func DecodeMessages(raw string) ([]model.ConversationMessage, error) {
	if raw == "" {
		return []model.ConversationMessage{}, nil
	}
	var messages []model.ConversationMessage
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
