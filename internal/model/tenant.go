package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant represents the tenant model stored in the database
// This is the core of our multi-tenant architecture
type Tenant struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Description string         `json:"description" gorm:"type:text"`
	Document    string         `json:"document" gorm:"type:varchar(20)"`
	Segment     string         `json:"segment" gorm:"type:varchar(50)"`
	Active      bool           `json:"active" gorm:"default:true"`
	Settings    JSONMap        `json:"settings" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TenantQuota tracks how many channel resources a tenant has provisioned
// against its contracted limit. UsedCount must never exceed MaxLimit after a
// successful reservation.
type TenantQuota struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uint      `json:"tenant_id" gorm:"uniqueIndex;not null"`
	MaxLimit  int       `json:"max_limit" gorm:"not null;default:1"`
	UsedCount int       `json:"used_count" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
