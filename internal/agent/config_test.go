package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/testutil"
)

func seedConfig(t *testing.T, db *gorm.DB, tenantID *uint, name string, active bool) uint {
	t.Helper()

	cfg := model.AgentConfig{
		TenantID:     tenantID,
		Name:         name,
		Model:        "gpt-4o-mini",
		Instructions: "Seja cordial.",
		Active:       active,
	}
	require.NoError(t, db.Create(&cfg).Error)
	return cfg.ID
}

func countActive(t *testing.T, db *gorm.DB, tenantID *uint) int64 {
	t.Helper()

	q := db.Model(&model.AgentConfig{}).Where("active = ?", true)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	} else {
		q = q.Where("tenant_id IS NULL")
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestResolveActiveConfigTenantScope(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tenantID := testutil.SeedTenant(t, db, "resolve-a")

	seedConfig(t, db, nil, "global", true)
	want := seedConfig(t, db, &tenantID, "mine", true)

	cfg, err := ResolveActiveConfig(context.Background(), db, tenantID)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.ID)
}

func TestResolveActiveConfigFallsBackToGlobal(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tenantID := testutil.SeedTenant(t, db, "resolve-b")

	want := seedConfig(t, db, nil, "global", true)
	seedConfig(t, db, &tenantID, "inactive", false)

	cfg, err := ResolveActiveConfig(context.Background(), db, tenantID)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.ID)
}

func TestResolveActiveConfigNone(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tenantID := testutil.SeedTenant(t, db, "resolve-c")

	_, err := ResolveActiveConfig(context.Background(), db, tenantID)
	assert.ErrorIs(t, err, ErrNoActiveConfig)
}

func TestActivateConfigSwitchesWithinScope(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tenantID := testutil.SeedTenant(t, db, "activate-a")

	first := seedConfig(t, db, &tenantID, "first", true)
	second := seedConfig(t, db, &tenantID, "second", false)

	cfg, err := ActivateConfig(context.Background(), db, second)
	require.NoError(t, err)
	assert.Equal(t, second, cfg.ID)
	assert.True(t, cfg.Active)

	assert.Equal(t, int64(1), countActive(t, db, &tenantID))

	var old model.AgentConfig
	require.NoError(t, db.First(&old, first).Error)
	assert.False(t, old.Active)
}

func TestActivateConfigLeavesOtherScopesAlone(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tenantA := testutil.SeedTenant(t, db, "activate-b")
	tenantB := testutil.SeedTenant(t, db, "activate-c")

	otherScope := seedConfig(t, db, &tenantB, "other", true)
	globalScope := seedConfig(t, db, nil, "global", true)
	target := seedConfig(t, db, &tenantA, "target", false)

	_, err := ActivateConfig(context.Background(), db, target)
	require.NoError(t, err)

	var other, global model.AgentConfig
	require.NoError(t, db.First(&other, otherScope).Error)
	require.NoError(t, db.First(&global, globalScope).Error)
	assert.True(t, other.Active, "sibling tenant scope untouched")
	assert.True(t, global.Active, "global scope untouched")
}

func TestActivateConfigRepeatedCallsKeepSingleActive(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tenantID := testutil.SeedTenant(t, db, "activate-d")

	a := seedConfig(t, db, &tenantID, "a", false)
	b := seedConfig(t, db, &tenantID, "b", false)

	ctx := context.Background()
	for _, id := range []uint{a, b, a, b, b} {
		_, err := ActivateConfig(ctx, db, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), countActive(t, db, &tenantID))
	}
}

func TestActivateConfigUnknownID(t *testing.T) {
	db := testutil.OpenTestDB(t)

	_, err := ActivateConfig(context.Background(), db, 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
