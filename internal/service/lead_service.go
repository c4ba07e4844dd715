package service

import (
	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
)

// LeadService 是客服后台的线索管理入口。
type LeadService interface {
	List(page, pageSize int) ([]model.Lead, int64, error)
	Search(term string, limit int) ([]model.Lead, error)
	Get(id uint) (*model.Lead, error)
	AddNote(id uint, note string) error
	Delete(id uint) error
}

type leadService struct {
	repo repository.LeadRepository
}

// NewLeadService 创建一个新的 LeadService 实例。
func NewLeadService(repo repository.LeadRepository) LeadService {
	return &leadService{repo: repo}
}

// List 分页列出线索。
func (s *leadService) List(page, pageSize int) ([]model.Lead, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.FindWithPagination((page-1)*pageSize, pageSize)
}

// Search 按姓名、邮箱或电话模糊检索线索。
func (s *leadService) Search(term string, limit int) ([]model.Lead, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.Search(term, limit)
}

// Get 按 ID 获取线索。
func (s *leadService) Get(id uint) (*model.Lead, error) {
	return s.repo.FindByID(id)
}

// AddNote 给线索追加一条客服备注。
func (s *leadService) AddNote(id uint, note string) error {
	return s.repo.AddNote(id, note)
}

// Delete 删除线索。
func (s *leadService) Delete(id uint) error {
	return s.repo.Delete(id)
}
