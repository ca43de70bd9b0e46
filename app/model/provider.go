package model

import (
	"time"
)

// Provider 模型提供商配置
// 笔记生成时按 provider_id 查找对应的接入点和密钥
type Provider struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ProviderID string    `gorm:"size:64;not null;uniqueIndex;comment:提供商唯一标识" json:"provider_id"`
	Name       string    `gorm:"size:100;not null;comment:显示名称" json:"name"`
	BaseURL    string    `gorm:"size:255;not null;comment:OpenAI兼容接入点" json:"base_url"`
	APIKey     string    `gorm:"type:text;comment:访问密钥" json:"-"`
	Enabled    bool      `gorm:"default:true;comment:是否启用" json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Provider) TableName() string {
	return "providers"
}
