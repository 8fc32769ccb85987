package model

import (
	"time"

	"gorm.io/gorm"
)

// ChannelStatus is the lifecycle state of a channel resource at the provider
type ChannelStatus string

const (
	ChannelDisconnected ChannelStatus = "disconnected"
	ChannelConnecting   ChannelStatus = "connecting"
	ChannelConnected    ChannelStatus = "connected"
)

// ChannelResource represents a messaging endpoint provisioned at the external
// provider and owned by exactly one tenant.
type ChannelResource struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TenantID   uint           `json:"tenant_id" gorm:"index;not null"`
	ProviderID string         `json:"provider_id" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name       string         `json:"name" gorm:"type:varchar(100)"`
	Phone      string         `json:"phone" gorm:"type:varchar(30)"`
	Status     ChannelStatus  `json:"status" gorm:"type:varchar(20);default:'disconnected'"`
	Token      string         `json:"-" gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
