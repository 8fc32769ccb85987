package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/testutil"
)

func setQuota(t *testing.T, e *Enforcer, tenantID uint, limit, used int) {
	t.Helper()

	require.NoError(t, e.db.Create(&model.TenantQuota{
		TenantID:  tenantID,
		MaxLimit:  limit,
		UsedCount: used,
	}).Error)
}

func TestTryReserveWithinLimit(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 1)
	tenantID := testutil.SeedTenant(t, db, "tenant-a")
	setQuota(t, e, tenantID, 3, 0)

	res, err := e.TryReserve(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Used)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 2, res.Remaining)
}

func TestTryReserveAtLimitDenied(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 1)
	tenantID := testutil.SeedTenant(t, db, "tenant-b")
	setQuota(t, e, tenantID, 2, 2)

	ctx := context.Background()
	_, err := e.TryReserve(ctx, tenantID)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Denied twice in a row: the count never goes past the limit
	_, err = e.TryReserve(ctx, tenantID)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	var q model.TenantQuota
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&q).Error)
	assert.Equal(t, 2, q.UsedCount)
}

func TestTryReserveConcurrentLastSlot(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 1)
	tenantID := testutil.SeedTenant(t, db, "tenant-c")
	setQuota(t, e, tenantID, 2, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.TryReserve(context.Background(), tenantID)
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, err := range errs {
		if err == nil {
			granted++
		} else {
			assert.ErrorIs(t, err, ErrQuotaExceeded)
		}
	}
	assert.Equal(t, 1, granted, "exactly one of two racing reservations wins")

	var q model.TenantQuota
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&q).Error)
	assert.Equal(t, 2, q.UsedCount)
}

func TestTryReserveCreatesRowWithDefaultLimit(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 2)
	tenantID := testutil.SeedTenant(t, db, "tenant-d")

	ctx := context.Background()
	res, err := e.TryReserve(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Limit)
	assert.Equal(t, 1, res.Used)

	_, err = e.TryReserve(ctx, tenantID)
	require.NoError(t, err)
	_, err = e.TryReserve(ctx, tenantID)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 1)
	tenantID := testutil.SeedTenant(t, db, "tenant-e")
	setQuota(t, e, tenantID, 3, 1)

	ctx := context.Background()
	require.NoError(t, e.Release(ctx, tenantID))
	require.NoError(t, e.Release(ctx, tenantID))

	var q model.TenantQuota
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&q).Error)
	assert.Equal(t, 0, q.UsedCount)
}

func TestGetQuotaInfo(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 1)
	tenantID := testutil.SeedTenant(t, db, "tenant-f")
	setQuota(t, e, tenantID, 3, 2)

	info, err := e.GetQuotaInfo(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Limit)
	assert.Equal(t, 2, info.Used)
	assert.Equal(t, 1, info.Remaining)
	assert.True(t, info.CanCreateMore)
}

func TestSetLimitBelowUsage(t *testing.T) {
	db := testutil.OpenTestDB(t)
	e := NewEnforcer(db, testutil.Logger(), 1)
	tenantID := testutil.SeedTenant(t, db, "tenant-g")
	setQuota(t, e, tenantID, 5, 3)

	ctx := context.Background()
	require.NoError(t, e.SetLimit(ctx, tenantID, 2))

	// Existing usage stays, further creation is blocked
	info, err := e.GetQuotaInfo(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 3, info.Used)
	assert.Equal(t, 0, info.Remaining)
	assert.False(t, info.CanCreateMore)

	_, err = e.TryReserve(ctx, tenantID)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	assert.Error(t, e.SetLimit(ctx, tenantID, -1))
}
