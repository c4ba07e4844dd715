// Package repository 提供了数据访问层的实现。
package repository

import (
	"gorm.io/gorm"

	"github.com/metspa/woo-ai-customer-service/internal/model"
)

// OrderRepository 定义了对店铺订单库的只读查询。
// 本服务绝不写入店铺侧的表。
type OrderRepository interface {
	FindCustomerByEmail(email string) (*model.Customer, error)
	// RecentOrdersByCustomer 返回注册客户最近的订单，新到旧，含行项目和元数据。
	RecentOrdersByCustomer(customerID uint, limit int) ([]model.Order, error)
	// RecentOrdersByBillingEmail 为游客按账单邮箱检索订单。
	RecentOrdersByBillingEmail(email string, limit int) ([]model.Order, error)
	// CustomerAggregates 返回客户的累计订单数与消费额。
	CustomerAggregates(customerID uint) (int64, float64, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建一个新的 OrderRepository 实例。
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// FindCustomerByEmail 按邮箱查找注册客户。
func (r *orderRepository) FindCustomerByEmail(email string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.Where("email = ?", email).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// RecentOrdersByCustomer 检索注册客户的最近订单。
func (r *orderRepository) RecentOrdersByCustomer(customerID uint, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.
		Preload("Items").
		Preload("Meta").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// RecentOrdersByBillingEmail 检索游客订单。
func (r *orderRepository) RecentOrdersByBillingEmail(email string, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.
		Preload("Items").
		Preload("Meta").
		Where("billing_email = ?", email).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// CustomerAggregates 统计客户的订单总数和累计消费。
func (r *orderRepository) CustomerAggregates(customerID uint) (int64, float64, error) {
	var count int64
	if err := r.db.Model(&model.Order{}).Where("customer_id = ?", customerID).Count(&count).Error; err != nil {
		return 0, 0, err
	}
	var total *float64
	if err := r.db.Model(&model.Order{}).
		Where("customer_id = ?", customerID).
		Select("SUM(total)").Scan(&total).Error; err != nil {
		return 0, 0, err
	}
	spent := 0.0
	if total != nil {
		spent = *total
	}
	return count, spent, nil
}
