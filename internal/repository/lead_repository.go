// Package repository 提供了数据访问层的实现。
package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/metspa/woo-ai-customer-service/internal/model"
)

// LeadRepository 接口定义了线索数据的持久化操作。
type LeadRepository interface {
	// UpsertByEmail 按邮箱去重保存线索：已存在则刷新联系信息并推进
	// last_contact，否则插入新记录。返回线索 ID。
	UpsertByEmail(lead *model.Lead) (uint, error)
	FindByEmail(email string) (*model.Lead, error)
	FindByID(id uint) (*model.Lead, error)
	FindBySession(sessionID string) (*model.Lead, error)
	FindWithPagination(offset, limit int) ([]model.Lead, int64, error)
	Search(term string, limit int) ([]model.Lead, error)
	UpdateLastContact(id uint) error
	AddNote(id uint, note string) error
	Delete(id uint) error
}

// leadRepository 是 LeadRepository 接口的 GORM 实现。
type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository 创建一个新的 LeadRepository 实例。
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

// UpsertByEmail 按邮箱查找并更新，不存在时创建。
func (r *leadRepository) UpsertByEmail(lead *model.Lead) (uint, error) {
	existing, err := r.FindByEmail(lead.Email)
	if err != nil && err != gorm.ErrRecordNotFound {
		return 0, err
	}

	now := time.Now()
	if existing != nil {
		updates := map[string]interface{}{
			"first_name":   lead.FirstName,
			"last_name":    lead.LastName,
			"phone":        lead.Phone,
			"session_id":   lead.SessionID,
			"last_contact": now,
		}
		if err := r.db.Model(&model.Lead{}).Where("email = ?", lead.Email).Updates(updates).Error; err != nil {
			return 0, err
		}
		return existing.ID, nil
	}

	lead.LastContact = now
	if lead.Source == "" {
		lead.Source = "chat_widget"
	}
	if err := r.db.Create(lead).Error; err != nil {
		return 0, err
	}
	return lead.ID, nil
}

// FindByEmail 根据邮箱查找线索。
func (r *leadRepository) FindByEmail(email string) (*model.Lead, error) {
	var lead model.Lead
	err := r.db.Where("email = ?", email).First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindByID 根据 ID 查找线索。
func (r *leadRepository) FindByID(id uint) (*model.Lead, error) {
	var lead model.Lead
	err := r.db.First(&lead, id).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindBySession 根据会话 ID 查找最近一条线索。
func (r *leadRepository) FindBySession(sessionID string) (*model.Lead, error) {
	var lead model.Lead
	err := r.db.Where("session_id = ?", sessionID).Order("last_contact DESC").First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindWithPagination 分页检索线索，返回列表和总数。
func (r *leadRepository) FindWithPagination(offset, limit int) ([]model.Lead, int64, error) {
	var leads []model.Lead
	var total int64

	db := r.db.Model(&model.Lead{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&leads).Error; err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// Search 按姓名、邮箱或电话模糊检索。
func (r *leadRepository) Search(term string, limit int) ([]model.Lead, error) {
	var leads []model.Lead
	like := "%" + term + "%"
	err := r.db.
		Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like, like).
		Order("created_at DESC").
		Limit(limit).
		Find(&leads).Error
	return leads, err
}

// UpdateLastContact 将线索的最近联系时间推进到当前时间。
func (r *leadRepository) UpdateLastContact(id uint) error {
	return r.db.Model(&model.Lead{}).Where("id = ?", id).
		Update("last_contact", time.Now()).Error
}

// AddNote 在线索备注上追加一条带时间戳的记录。
func (r *leadRepository) AddNote(id uint, note string) error {
	lead, err := r.FindByID(id)
	if err != nil {
		return err
	}
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04"), note)
	if lead.Notes != "" {
		stamped = lead.Notes + "\n\n" + stamped
	}
	return r.db.Model(&model.Lead{}).Where("id = ?", id).Update("notes", stamped).Error
}

// Delete 删除线索记录。
func (r *leadRepository) Delete(id uint) error {
	return r.db.Delete(&model.Lead{}, id).Error
}
