package pipeline

import (
	"context"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartSweeper marks active conversations idle for longer than abandonAfter
// as abandoned. Runs until ctx is cancelled.
func StartSweeper(ctx context.Context, db *gorm.DB, log *zap.Logger, abandonAfter, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, db, log, abandonAfter)
			}
		}
	}()
}

func sweep(ctx context.Context, db *gorm.DB, log *zap.Logger, abandonAfter time.Duration) {
	cutoff := time.Now().Add(-abandonAfter)
	res := db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("status = ? AND last_activity_at < ?", model.ConversationActive, cutoff).
		UpdateColumn("status", model.ConversationAbandoned)
	if res.Error != nil {
		log.Error("Conversation sweep failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		log.Info("Abandoned idle conversations", zap.Int64("count", res.RowsAffected))
	}
}
