package handler

import (
	"context"
	"net/http"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/pipeline"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ReceiveMessage accepts one inbound message event from the provider
// webhook. The event is dispatched to its own goroutine and the webhook is
// acknowledged immediately; providers retry aggressively on slow responses.
func ReceiveMessage(c echo.Context) error {
	log := logger.FromEcho(c)

	var event pipeline.InboundEvent
	if err := c.Bind(&event); err != nil {
		log.Warn("Malformed webhook payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	if event.ChannelProviderID == "" || event.From == "" {
		log.Warn("Webhook event missing required fields")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "channelProviderId and from are required"})
	}

	// Each event runs as an independent task; ordering per conversation is
	// the pipeline's job, not the dispatcher's.
	reqLogger := log
	go func() {
		ctx := logger.WithContext(context.Background(), reqLogger)
		ingestion.HandleEvent(ctx, event)
	}()

	return c.JSON(http.StatusOK, echo.Map{"status": "accepted"})
}
