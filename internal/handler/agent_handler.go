package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/agent"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/database"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateAgentConfig registers a new agent configuration for the tenant.
// New configs start inactive; activation is a separate, atomic step.
func CreateAgentConfig(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	var req struct {
		Name         string  `json:"name"`
		Provider     string  `json:"provider"`
		Model        string  `json:"model"`
		Temperature  float64 `json:"temperature"`
		MaxTokens    int     `json:"max_tokens"`
		APIKey       string  `json:"api_key"`
		Instructions string  `json:"instructions"`
		TemplateID   *uint   `json:"template_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Model == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "model is required"})
	}

	cfg := model.AgentConfig{
		TenantID:     &tenantID,
		Name:         req.Name,
		Provider:     req.Provider,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		APIKey:       req.APIKey,
		Instructions: req.Instructions,
		TemplateID:   req.TemplateID,
		Active:       false,
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&cfg).Error; err != nil {
		log.Error("Failed to create agent config", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "creation failed"})
	}

	return c.JSON(http.StatusCreated, cfg)
}

// ListAgentConfigs returns the tenant's agent configurations
func ListAgentConfigs(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())

	var configs []model.AgentConfig
	err := database.GetDB().
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&configs).Error
	if err != nil {
		log.Error("Failed to list agent configs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list configs"})
	}
	return c.JSON(http.StatusOK, echo.Map{"configs": configs})
}

// ActivateAgentConfig makes one config the single active one in its scope
func ActivateAgentConfig(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid config id"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	cfg, err := agent.ActivateConfig(c.Request().Context(), database.GetDB(), uint(id))
	if err != nil {
		log.Error("Failed to activate agent config", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activation failed"})
	}

	log.Info("Agent config activated", zap.Uint("config_id", cfg.ID))
	return c.JSON(http.StatusOK, cfg)
}

// CreatePromptTemplate registers a reusable prompt template
func CreatePromptTemplate(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	var req struct {
		Name      string   `json:"name"`
		Body      string   `json:"body"`
		Variables []string `json:"variables"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" || req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and body are required"})
	}

	tpl := model.PromptTemplate{
		TenantID:  &tenantID,
		Name:      req.Name,
		Body:      req.Body,
		Variables: model.StringSlice(req.Variables),
	}
	if err := database.GetDB().Create(&tpl).Error; err != nil {
		log.Error("Failed to create prompt template", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "creation failed"})
	}

	return c.JSON(http.StatusCreated, tpl)
}
