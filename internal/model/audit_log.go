package model

import "time"

// AuditLog records guardrail checks and privileged administrative actions.
// Writes to this table are best-effort: a failed audit write never fails the
// operation being audited.
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ResourceID string    `json:"resource_id" gorm:"type:varchar(100);index"`
	Operation  string    `json:"operation" gorm:"type:varchar(30);not null"`
	Outcome    string    `json:"outcome" gorm:"type:varchar(30);not null"`
	Detail     string    `json:"detail" gorm:"type:text"`
	Actor      string    `json:"actor" gorm:"type:varchar(100)"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

// UsageLog records one completion call: token counts and estimated cost.
// Written asynchronously after each orchestration.
type UsageLog struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	TenantID         uint      `json:"tenant_id" gorm:"index"`
	ConversationID   uint      `json:"conversation_id" gorm:"index"`
	Model            string    `json:"model" gorm:"type:varchar(100)"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	EstimatedCost    float64   `json:"estimated_cost"`
	CreatedAt        time.Time `json:"created_at"`
}
