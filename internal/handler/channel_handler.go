package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/channel"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/guardrail"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/quota"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateChannel provisions a new channel resource for the caller's tenant
func CreateChannel(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	ch, err := channels.Create(c.Request().Context(), tenantID, req.Name)
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			info, infoErr := enforcer.GetQuotaInfo(c.Request().Context(), tenantID)
			if infoErr != nil {
				log.Error("Failed to read quota info", zap.Error(infoErr))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "channel quota exceeded"})
			}
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "channel quota exceeded",
				"quota": info,
			})
		}
		log.Error("Failed to create channel", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "channel creation failed"})
	}

	return c.JSON(http.StatusCreated, ch)
}

// ListChannels returns the tenant's channel resources
func ListChannels(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())

	list, err := channels.List(c.Request().Context(), tenantID)
	if err != nil {
		log.Error("Failed to list channels", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list channels"})
	}
	return c.JSON(http.StatusOK, echo.Map{"channels": list})
}

// ChannelStatus refreshes and returns the channel's provider-side status
func ChannelStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	id, err := channelID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid channel id"})
	}

	status, err := channels.RefreshStatus(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "channel not found"})
		}
		log.Error("Failed to refresh channel status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// ConnectChannel starts the pairing flow for a channel
func ConnectChannel(c echo.Context) error {
	return channelOperation(c, "connect", channels.Connect)
}

// DisconnectChannel logs a channel out at the provider
func DisconnectChannel(c echo.Context) error {
	return channelOperation(c, "disconnect", channels.Disconnect)
}

// DeleteChannel destroys a channel resource. Protected resources are denied
// with the protection details, regardless of the caller's role.
func DeleteChannel(c echo.Context) error {
	return channelOperation(c, "delete", channels.Delete)
}

// channelOperation handles the shared shape of connect/disconnect/delete:
// resolve the channel, run the lifecycle call, map the error taxonomy.
func channelOperation(c echo.Context, name string, op func(ctx context.Context, tenantID, channelID uint) error) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	id, err := channelID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid channel id"})
	}

	err = op(c.Request().Context(), tenantID, id)
	if err != nil {
		switch {
		case errors.Is(err, channel.ErrChannelNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "channel not found"})
		case errors.Is(err, guardrail.ErrProtected):
			// Non-retryable: the denial and its reason go back to the caller
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":   "operation denied by resource protection",
				"message": err.Error(),
			})
		default:
			log.Error("Channel operation failed",
				zap.String("operation", name),
				zap.Uint("channel_id", id),
				zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": name + " failed"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// GetQuotaInfo returns the tenant's channel quota for display
func GetQuotaInfo(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	info, err := enforcer.GetQuotaInfo(c.Request().Context(), tenantID)
	if err != nil {
		log.Error("Failed to read quota info", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read quota"})
	}
	return c.JSON(http.StatusOK, info)
}

func channelID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
