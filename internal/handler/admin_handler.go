package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/database"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProtectResource registers a protection entry for a channel resource.
// Privileged: the route is gated behind an elevated role.
func ProtectResource(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		ResourceID  string `json:"resource_id"`
		Level       string `json:"level"`
		Reason      string `json:"reason"`
		ClientLabel string `json:"client_label"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.ResourceID == "" || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resource_id and reason are required"})
	}

	level := model.ProtectionLevel(req.Level)
	switch level {
	case model.ProtectionCritical, model.ProtectionHigh, model.ProtectionNormal:
	case "":
		level = model.ProtectionNormal
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid protection level"})
	}

	entry := model.ProtectionEntry{
		ResourceID:  req.ResourceID,
		Level:       level,
		Reason:      req.Reason,
		ClientLabel: req.ClientLabel,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&entry).Error; err != nil {
		log.Error("Failed to create protection entry", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "protection failed"})
	}

	auditAdminAction(c, entry.ResourceID, "protect", req.Reason)
	log.Info("Resource protected",
		zap.String("resource_id", entry.ResourceID),
		zap.String("level", string(entry.Level)))
	return c.JSON(http.StatusCreated, entry)
}

// UnprotectResource removes a protection entry. Privileged and audited;
// this is deliberately not reachable from ordinary tenant operations.
func UnprotectResource(c echo.Context) error {
	log := logger.FromEcho(c)
	resourceID := c.Param("resourceId")

	res := database.GetDB().
		Where("resource_id = ?", resourceID).
		Delete(&model.ProtectionEntry{})
	if res.Error != nil {
		log.Error("Failed to remove protection entry", zap.Error(res.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "removal failed"})
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "protection entry not found"})
	}

	auditAdminAction(c, resourceID, "unprotect", "administrative removal")
	log.Info("Protection entry removed", zap.String("resource_id", resourceID))
	return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
}

// SetTenantQuota changes a tenant's channel limit. Lowering the limit never
// revokes existing channels, it only blocks further creation.
func SetTenantQuota(c echo.Context) error {
	log := logger.FromEcho(c)

	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}

	var req struct {
		Limit int `json:"limit"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Limit < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must not be negative"})
	}

	if err := enforcer.SetLimit(c.Request().Context(), uint(tenantID), req.Limit); err != nil {
		log.Error("Failed to set tenant quota", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "quota update failed"})
	}

	auditAdminAction(c, strconv.FormatUint(tenantID, 10), "set_quota_limit", strconv.Itoa(req.Limit))
	return c.JSON(http.StatusOK, echo.Map{"status": "updated", "limit": req.Limit})
}

// ListAuditLog returns recent audit entries, newest first
func ListAuditLog(c echo.Context) error {
	log := logger.FromEcho(c)

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var entries []model.AuditLog
	err := database.GetDB().
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		log.Error("Failed to list audit log", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list audit log"})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

// auditAdminAction records a privileged action; failures only log
func auditAdminAction(c echo.Context, resourceID, operation, detail string) {
	actor, _ := c.Get("email").(string)
	row := model.AuditLog{
		ResourceID: resourceID,
		Operation:  operation,
		Outcome:    "admin_action",
		Detail:     detail,
		Actor:      actor,
	}
	if err := database.GetDB().Create(&row).Error; err != nil {
		logger.FromEcho(c).Error("Failed to write admin audit entry", zap.Error(err))
	}
}
