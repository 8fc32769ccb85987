package model

import (
	"time"

	"gorm.io/gorm"
)

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	ConversationActive       ConversationStatus = "active"
	ConversationWaitingHuman ConversationStatus = "waiting_human"
	ConversationCompleted    ConversationStatus = "completed"
	ConversationAbandoned    ConversationStatus = "abandoned"
)

// Conversation is the durable record for one contact talking through one
// channel resource. At most one active conversation exists per
// (channel, contact) pair.
type Conversation struct {
	ID             uint               `json:"id" gorm:"primaryKey"`
	ChannelID      uint               `json:"channel_id" gorm:"index:idx_conversation_channel_contact;not null"`
	Contact        string             `json:"contact" gorm:"type:varchar(50);index:idx_conversation_channel_contact;not null"`
	Status         ConversationStatus `json:"status" gorm:"type:varchar(20);index;default:'active'"`
	Context        JSONMap            `json:"context" gorm:"type:jsonb"`
	TransferReason string             `json:"transfer_reason,omitempty" gorm:"type:varchar(100)"`
	TransferredAt  *time.Time         `json:"transferred_at,omitempty"`
	LastActivityAt time.Time          `json:"last_activity_at" gorm:"index"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `json:"-" gorm:"index"`
}

// MessageDirection distinguishes user messages from bot replies
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message is one entry in a conversation's append-only transcript
type Message struct {
	ID             uint             `json:"id" gorm:"primaryKey"`
	ConversationID uint             `json:"conversation_id" gorm:"index;not null"`
	Direction      MessageDirection `json:"direction" gorm:"type:varchar(10);not null"`
	Content        string           `json:"content" gorm:"type:text"`
	Type           string           `json:"type" gorm:"type:varchar(20);default:'text'"`
	Processed      bool             `json:"processed" gorm:"default:false"`
	Reply          string           `json:"reply,omitempty" gorm:"type:text"`
	CreatedAt      time.Time        `json:"created_at"`
}
