package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrQuotaExceeded is returned when a tenant has no remaining channel slots
var ErrQuotaExceeded = errors.New("channel quota exceeded")

// Info is the read-only view of a tenant's quota for display purposes
type Info struct {
	Limit         int  `json:"limit"`
	Used          int  `json:"used"`
	Remaining     int  `json:"remaining"`
	CanCreateMore bool `json:"can_create_more"`
}

// Reservation is the result of a successful tryReserve
type Reservation struct {
	Used      int
	Limit     int
	Remaining int
}

// Enforcer gates creation of channel resources against the tenant's
// provisioned limit. Reservations are a single conditional increment at the
// database, so two concurrent attempts at the boundary cannot both succeed.
type Enforcer struct {
	db           *gorm.DB
	log          *zap.Logger
	defaultLimit int
}

// NewEnforcer creates a quota enforcer. defaultLimit is used when a tenant
// has no quota row yet.
func NewEnforcer(db *gorm.DB, log *zap.Logger, defaultLimit int) *Enforcer {
	if defaultLimit < 1 {
		defaultLimit = 1
	}
	return &Enforcer{db: db, log: log, defaultLimit: defaultLimit}
}

// TryReserve atomically claims one channel slot for the tenant. The
// increment and the limit check are one UPDATE, so the authoritative count
// is read at decision time. Returns ErrQuotaExceeded when no slot remains.
func (e *Enforcer) TryReserve(ctx context.Context, tenantID uint) (*Reservation, error) {
	q, err := e.getOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res := e.db.WithContext(ctx).
		Model(&model.TenantQuota{}).
		Where("tenant_id = ? AND used_count < max_limit", tenantID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to reserve channel slot: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		prometheus.QuotaDeniesCounter.Inc()
		e.log.Warn("Channel creation blocked by quota",
			zap.Uint("tenant_id", tenantID),
			zap.Int("used", q.UsedCount),
			zap.Int("limit", q.MaxLimit))
		return nil, fmt.Errorf("%w: %d of %d channels in use", ErrQuotaExceeded, q.UsedCount, q.MaxLimit)
	}

	// Re-read for accurate post-reservation numbers
	var after model.TenantQuota
	if err := e.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&after).Error; err != nil {
		return nil, fmt.Errorf("failed to read quota after reservation: %w", err)
	}

	return &Reservation{
		Used:      after.UsedCount,
		Limit:     after.MaxLimit,
		Remaining: after.MaxLimit - after.UsedCount,
	}, nil
}

// Release returns one channel slot, flooring at zero. Called when a channel
// is deleted or when provider-side creation fails after a reservation.
func (e *Enforcer) Release(ctx context.Context, tenantID uint) error {
	res := e.db.WithContext(ctx).
		Model(&model.TenantQuota{}).
		Where("tenant_id = ? AND used_count > 0", tenantID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to release channel slot: %w", res.Error)
	}
	return nil
}

// GetQuotaInfo returns the tenant's quota for display. Never mutates state
// beyond lazily creating the quota row with the default limit.
func (e *Enforcer) GetQuotaInfo(ctx context.Context, tenantID uint) (*Info, error) {
	q, err := e.getOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	remaining := q.MaxLimit - q.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &Info{
		Limit:         q.MaxLimit,
		Used:          q.UsedCount,
		Remaining:     remaining,
		CanCreateMore: q.UsedCount < q.MaxLimit,
	}, nil
}

// SetLimit changes a tenant's channel limit. Privileged operation: existing
// channels over a lowered limit stay connected, only further creation is
// blocked.
func (e *Enforcer) SetLimit(ctx context.Context, tenantID uint, newLimit int) error {
	if newLimit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if _, err := e.getOrCreate(ctx, tenantID); err != nil {
		return err
	}
	res := e.db.WithContext(ctx).
		Model(&model.TenantQuota{}).
		Where("tenant_id = ?", tenantID).
		UpdateColumn("max_limit", newLimit)
	if res.Error != nil {
		return fmt.Errorf("failed to update quota limit: %w", res.Error)
	}
	e.log.Info("Tenant quota limit updated",
		zap.Uint("tenant_id", tenantID),
		zap.Int("new_limit", newLimit))
	return nil
}

func (e *Enforcer) getOrCreate(ctx context.Context, tenantID uint) (*model.TenantQuota, error) {
	var q model.TenantQuota
	err := e.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&q).Error
	if err == nil {
		return &q, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read tenant quota: %w", err)
	}

	q = model.TenantQuota{TenantID: tenantID, MaxLimit: e.defaultLimit, UsedCount: 0}
	if err := e.db.WithContext(ctx).Create(&q).Error; err != nil {
		// Another request may have created the row concurrently
		if ferr := e.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&q).Error; ferr == nil {
			return &q, nil
		}
		return nil, fmt.Errorf("failed to create tenant quota: %w", err)
	}
	return &q, nil
}
