package model

import "time"

// ProtectionLevel classifies how critical a protected channel resource is
type ProtectionLevel string

const (
	ProtectionCritical ProtectionLevel = "CRITICAL"
	ProtectionHigh     ProtectionLevel = "HIGH"
	ProtectionNormal   ProtectionLevel = "NORMAL"
)

// ProtectionEntry marks a channel resource that must never be deleted or
// disruptively modified, regardless of who asks. Entries are created and
// removed only by explicit administrative action and never expire.
type ProtectionEntry struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	ResourceID  string          `json:"resource_id" gorm:"type:varchar(100);uniqueIndex;not null"`
	Level       ProtectionLevel `json:"level" gorm:"type:varchar(20);not null;default:'NORMAL'"`
	Reason      string          `json:"reason" gorm:"type:text"`
	ClientLabel string          `json:"client_label" gorm:"type:varchar(100)"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
