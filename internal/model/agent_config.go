package model

import (
	"time"

	"gorm.io/gorm"
)

// AgentConfig binds a completion provider, model and prompt to a scope.
// At most one config may be active per scope (tenant or global) at a time.
type AgentConfig struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	TenantID     *uint          `json:"tenant_id,omitempty" gorm:"index"` // nil = global scope
	Name         string         `json:"name" gorm:"type:varchar(100)"`
	Provider     string         `json:"provider" gorm:"type:varchar(50);default:'openai'"`
	Model        string         `json:"model" gorm:"type:varchar(100);not null"`
	Temperature  float64        `json:"temperature" gorm:"default:0.7"`
	MaxTokens    int            `json:"max_tokens" gorm:"default:500"`
	APIKey       string         `json:"-" gorm:"type:varchar(255)"`
	Instructions string         `json:"instructions" gorm:"type:text"`
	TemplateID   *uint          `json:"template_id,omitempty" gorm:"index"`
	Active       bool           `json:"active" gorm:"index;default:false"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// PromptTemplate is a reusable system prompt with a declared set of
// placeholder variables. Substitution is total: referencing an undeclared
// variable is an error, a declared variable that never appears is a warning.
type PromptTemplate struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	TenantID  *uint       `json:"tenant_id,omitempty" gorm:"index"`
	Name      string      `json:"name" gorm:"type:varchar(100);not null"`
	Body      string      `json:"body" gorm:"type:text;not null"`
	Variables StringSlice `json:"variables" gorm:"type:jsonb"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
