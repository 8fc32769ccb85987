package model

import (
	"time"

	"gorm.io/gorm"
)

// DocumentStatus is the processing state of an uploaded knowledge document
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentError      DocumentStatus = "error"
)

// KnowledgeDocument is an uploaded reference document. The raw text is
// chunked once at upload time; content is immutable after the document
// becomes ready, only metadata may change.
type KnowledgeDocument struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	Name      string         `json:"name" gorm:"type:varchar(150);not null"`
	Category  string         `json:"category" gorm:"type:varchar(50);index"`
	MimeType  string         `json:"mime_type" gorm:"type:varchar(100)"`
	FilePath  string         `json:"-" gorm:"type:varchar(255)"`
	SizeBytes int64          `json:"size_bytes"`
	Status    DocumentStatus `json:"status" gorm:"type:varchar(20);index;default:'processing'"`
	Active    bool           `json:"active" gorm:"default:true"`
	RawText   string         `json:"-" gorm:"type:text"`
	Chunks    StringSlice    `json:"-" gorm:"type:jsonb"`
	Keywords  StringSlice    `json:"keywords" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
