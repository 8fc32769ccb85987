package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"gorm.io/gorm"
)

// ErrNoActiveConfig means neither the tenant scope nor the global scope has
// an active agent configuration
var ErrNoActiveConfig = errors.New("no active agent configuration")

// ResolveActiveConfig returns the single active config for the tenant,
// falling back to the global scope when the tenant has none.
func ResolveActiveConfig(ctx context.Context, db *gorm.DB, tenantID uint) (*model.AgentConfig, error) {
	var cfg model.AgentConfig

	err := db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to resolve agent config: %w", err)
	}

	err = db.WithContext(ctx).
		Where("tenant_id IS NULL AND active = ?", true).
		First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveConfig
	}
	return nil, fmt.Errorf("failed to resolve agent config: %w", err)
}

// ActivateConfig makes the given config the single active one in its scope.
// Clearing the siblings and setting the target happen in one transaction so
// two concurrent activations cannot leave two active configs behind.
func ActivateConfig(ctx context.Context, db *gorm.DB, configID uint) (*model.AgentConfig, error) {
	var cfg model.AgentConfig

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cfg, configID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("agent config %d not found", configID)
			}
			return err
		}

		scope := tx.Model(&model.AgentConfig{})
		if cfg.TenantID != nil {
			scope = scope.Where("tenant_id = ?", *cfg.TenantID)
		} else {
			scope = scope.Where("tenant_id IS NULL")
		}
		if err := scope.UpdateColumn("active", false).Error; err != nil {
			return err
		}

		return tx.Model(&model.AgentConfig{}).
			Where("id = ?", configID).
			UpdateColumn("active", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to activate agent config: %w", err)
	}

	cfg.Active = true
	return &cfg, nil
}
