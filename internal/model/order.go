// Package model 包含了应用的数据模型定义。
package model

import "time"

// 店铺侧的订单数据对本服务是只读的，模型只映射查询所需的列。

// Customer 对应店铺的注册客户表。
type Customer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (Customer) TableName() string {
	return "store_customers"
}

// Order 对应店铺订单表。
type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	OrderNumber   string      `gorm:"type:varchar(50)" json:"orderNumber"`
	CustomerID    uint        `gorm:"index" json:"customerId"`
	BillingEmail  string      `gorm:"type:varchar(255);index" json:"billingEmail"`
	Status        string      `gorm:"type:varchar(30)" json:"status"`
	Total         float64     `json:"total"`
	Currency      string      `gorm:"type:varchar(10)" json:"currency"`
	PaymentMethod string      `gorm:"type:varchar(100)" json:"paymentMethod"`
	ShippingTo    string      `gorm:"type:text" json:"shippingTo"`
	CreatedAt     time.Time   `gorm:"index" json:"createdAt"`
	Items         []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	Meta          []OrderMeta `gorm:"foreignKey:OrderID" json:"meta"`
}

func (Order) TableName() string {
	return "store_orders"
}

// OrderItem 对应订单行项目。
type OrderItem struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	OrderID  uint    `gorm:"index" json:"orderId"`
	Name     string  `gorm:"type:varchar(255)" json:"name"`
	SKU      string  `gorm:"type:varchar(100)" json:"sku"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

func (OrderItem) TableName() string {
	return "store_order_items"
}

// OrderMeta 对应订单元数据表，物流单号和承运商存在约定的 meta key 下。
type OrderMeta struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderID uint   `gorm:"index" json:"orderId"`
	MetaKey string `gorm:"type:varchar(100);column:meta_key" json:"metaKey"`
	Value   string `gorm:"type:text;column:meta_value" json:"value"`
}

func (OrderMeta) TableName() string {
	return "store_order_meta"
}
