package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/guardrail"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/quota"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrChannelNotFound is returned for unknown channel IDs
var ErrChannelNotFound = errors.New("channel not found")

// Manager drives the channel resource lifecycle. Creation is gated by the
// tenant quota; every disruptive provider call goes through the guardrail.
type Manager struct {
	db       *gorm.DB
	log      *zap.Logger
	client   *Client
	guard    *guardrail.Checker
	enforcer *quota.Enforcer
}

// NewManager wires the channel lifecycle dependencies
func NewManager(db *gorm.DB, log *zap.Logger, client *Client, guard *guardrail.Checker, enforcer *quota.Enforcer) *Manager {
	return &Manager{db: db, log: log, client: client, guard: guard, enforcer: enforcer}
}

// Create reserves a quota slot, provisions the instance at the provider and
// persists the channel. The reservation is released if the provider call or
// the database write fails, so a failed creation never consumes a slot.
func (m *Manager) Create(ctx context.Context, tenantID uint, name string) (*model.ChannelResource, error) {
	reservation, err := m.enforcer.TryReserve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	info, err := m.client.CreateInstance(ctx, name)
	if err != nil {
		m.releaseAfterFailure(ctx, tenantID)
		return nil, fmt.Errorf("provider instance creation failed: %w", err)
	}

	ch := model.ChannelResource{
		TenantID:   tenantID,
		ProviderID: info.InstanceID,
		Name:       name,
		Status:     model.ChannelDisconnected,
		Token:      info.Token,
	}
	if err := m.db.WithContext(ctx).Create(&ch).Error; err != nil {
		m.releaseAfterFailure(ctx, tenantID)
		return nil, fmt.Errorf("failed to persist channel: %w", err)
	}

	m.log.Info("Channel created",
		zap.Uint("tenant_id", tenantID),
		zap.String("provider_id", ch.ProviderID),
		zap.Int("quota_used", reservation.Used),
		zap.Int("quota_limit", reservation.Limit))
	return &ch, nil
}

// Connect starts the provider pairing flow. Treated as a disruptive modify,
// so the guardrail is consulted first.
func (m *Manager) Connect(ctx context.Context, tenantID, channelID uint) error {
	ch, err := m.get(ctx, tenantID, channelID)
	if err != nil {
		return err
	}

	err = m.guard.SafeOperation(ctx, ch.ProviderID, guardrail.OperationModify, func() error {
		return m.client.Connect(ctx, ch.Token, ch.ProviderID)
	})
	if err != nil {
		return err
	}

	return m.db.WithContext(ctx).Model(ch).
		UpdateColumn("status", model.ChannelConnecting).Error
}

// Disconnect logs the instance out. Guardrail-gated like Connect.
func (m *Manager) Disconnect(ctx context.Context, tenantID, channelID uint) error {
	ch, err := m.get(ctx, tenantID, channelID)
	if err != nil {
		return err
	}

	err = m.guard.SafeOperation(ctx, ch.ProviderID, guardrail.OperationModify, func() error {
		return m.client.Disconnect(ctx, ch.Token, ch.ProviderID)
	})
	if err != nil {
		return err
	}

	return m.db.WithContext(ctx).Model(ch).
		UpdateColumn("status", model.ChannelDisconnected).Error
}

// Delete destroys the instance at the provider, removes the local record and
// returns the quota slot. Denied outright for protected resources.
func (m *Manager) Delete(ctx context.Context, tenantID, channelID uint) error {
	ch, err := m.get(ctx, tenantID, channelID)
	if err != nil {
		return err
	}

	err = m.guard.SafeOperation(ctx, ch.ProviderID, guardrail.OperationDelete, func() error {
		return m.client.DeleteInstance(ctx, ch.Token, ch.ProviderID)
	})
	if err != nil {
		return err
	}

	if err := m.db.WithContext(ctx).Delete(ch).Error; err != nil {
		return fmt.Errorf("failed to delete channel record: %w", err)
	}

	if err := m.enforcer.Release(ctx, tenantID); err != nil {
		m.log.Error("Failed to release quota slot after channel delete",
			zap.Uint("tenant_id", tenantID), zap.Error(err))
	}

	m.log.Info("Channel deleted",
		zap.Uint("tenant_id", tenantID),
		zap.String("provider_id", ch.ProviderID))
	return nil
}

// RefreshStatus queries the provider and stores the current connection state
func (m *Manager) RefreshStatus(ctx context.Context, tenantID, channelID uint) (model.ChannelStatus, error) {
	ch, err := m.get(ctx, tenantID, channelID)
	if err != nil {
		return "", err
	}

	status, err := m.client.Status(ctx, ch.Token, ch.ProviderID)
	if err != nil {
		return "", fmt.Errorf("provider status query failed: %w", err)
	}

	mapped := mapProviderStatus(status)
	if mapped != ch.Status {
		if err := m.db.WithContext(ctx).Model(ch).UpdateColumn("status", mapped).Error; err != nil {
			return "", fmt.Errorf("failed to store channel status: %w", err)
		}
	}
	return mapped, nil
}

// List returns the tenant's channels
func (m *Manager) List(ctx context.Context, tenantID uint) ([]model.ChannelResource, error) {
	var channels []model.ChannelResource
	err := m.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

func (m *Manager) get(ctx context.Context, tenantID, channelID uint) (*model.ChannelResource, error) {
	var ch model.ChannelResource
	err := m.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", channelID, tenantID).First(&ch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to load channel: %w", err)
	}
	return &ch, nil
}

func (m *Manager) releaseAfterFailure(ctx context.Context, tenantID uint) {
	if err := m.enforcer.Release(ctx, tenantID); err != nil {
		m.log.Error("Failed to release quota slot after failed creation",
			zap.Uint("tenant_id", tenantID), zap.Error(err))
	}
}

func mapProviderStatus(s string) model.ChannelStatus {
	switch s {
	case "connected", "open":
		return model.ChannelConnected
	case "connecting", "pairing":
		return model.ChannelConnecting
	default:
		return model.ChannelDisconnected
	}
}
