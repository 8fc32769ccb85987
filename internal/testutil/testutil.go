// Package testutil provides shared helpers for package tests.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/config"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
)

func init() {
	// Service code touches shared metrics; register them once for all tests.
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "test"}})
}

// OpenTestDB opens an in-memory SQLite database with all models migrated.
// The pool is limited to a single connection so every goroutine in the test
// sees the same in-memory database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// Logger returns a no-op logger for tests.
func Logger() *zap.Logger {
	return zap.NewNop()
}

// SeedTenant creates a tenant row and returns its ID.
func SeedTenant(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()

	tenant := model.Tenant{Name: name, Segment: "clinic"}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant.ID
}
