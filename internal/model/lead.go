// Package model 包含了应用的数据模型定义。
package model

import "time"

// Lead 定义了 ai_chat_leads 表的 ORM 模型。
// 它记录了聊天组件捕获的访客联系信息，按邮箱去重。
type Lead struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName   string    `gorm:"type:varchar(100);not null" json:"firstName"`
	LastName    string    `gorm:"type:varchar(100);not null" json:"lastName"`
	Email       string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone       string    `gorm:"type:varchar(50)" json:"phone"`
	SessionID   string    `gorm:"type:varchar(100);not null;index" json:"sessionId"`
	Source      string    `gorm:"type:varchar(50);default:chat_widget" json:"source"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	LastContact time.Time `json:"lastContact"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Lead) TableName() string {
	return "ai_chat_leads"
}

// FullName 返回 "First Last" 形式的客户姓名。
func (l *Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}
