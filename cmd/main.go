package main

import (
	"context"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/action"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/agent"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/channel"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/guardrail"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/handler"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/knowledge"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/llm"
	appmiddleware "github.com/ValmirAutomacao/optusadmin-sub000/internal/middleware"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/pipeline"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/quota"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/config"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/database"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/jwtutil"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("chatbot-service")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting chatbot service...", cfg.LogConfig()...)

	jwtutil.Init(cfg)

	// Initialize database (includes migrations)
	if err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	db := database.GetDB()

	// Wire the core collaborators
	guard := guardrail.NewChecker(db, log)
	enforcer := quota.NewEnforcer(db, log, cfg.Quota.DefaultChannelLimit)
	providerClient := channel.NewClient(cfg.Channel.BaseURL, cfg.Channel.APIKey)
	channelManager := channel.NewManager(db, log, providerClient, guard, enforcer)
	knowledgeService := knowledge.NewService(db, log, cfg.Upload.Dir, cfg.Upload.MaxBytes)
	completer := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
	orchestrator := agent.NewOrchestrator(db, log, completer, knowledgeService,
		cfg.LLM.Model, cfg.Conversation.HistoryTurns)
	executor := action.NewExecutor(db, log, providerClient)
	ingestion := pipeline.New(db, log, orchestrator, executor)

	handler.Init(handler.Deps{
		Pipeline:  ingestion,
		Channels:  channelManager,
		Knowledge: knowledgeService,
		Quota:     enforcer,
		Guardrail: guard,
	})

	// Background sweep for abandoned conversations
	pipeline.StartSweeper(context.Background(), db, log,
		cfg.Conversation.AbandonAfter, cfg.Conversation.SweepInterval)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(appmiddleware.RequestIDMiddleware())
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", handler.Hello)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Provider webhook; authenticated by provider signature at the edge
	e.POST("/webhook/messages", handler.ReceiveMessage)

	// Tenant API - requires a valid JWT with tenant context
	api := e.Group("/api")
	api.Use(appmiddleware.AuthMiddleware)
	api.Use(appmiddleware.RequireTenantContext)

	channels := api.Group("/channels")
	channels.POST("", handler.CreateChannel)
	channels.GET("", handler.ListChannels)
	channels.GET("/:id/status", handler.ChannelStatus)
	channels.POST("/:id/connect", handler.ConnectChannel)
	channels.POST("/:id/disconnect", handler.DisconnectChannel)
	channels.DELETE("/:id", handler.DeleteChannel)

	api.GET("/quota", handler.GetQuotaInfo)

	docs := api.Group("/knowledge")
	docs.POST("", handler.UploadDocument)
	docs.GET("", handler.ListDocuments)
	docs.GET("/search", handler.SearchKnowledge)
	docs.PUT("/:id", handler.UpdateDocument)
	docs.DELETE("/:id", handler.DeleteDocument)

	agents := api.Group("/agent-configs")
	agents.POST("", handler.CreateAgentConfig)
	agents.GET("", handler.ListAgentConfigs)
	agents.PUT("/:id/activate", handler.ActivateAgentConfig)
	api.POST("/prompt-templates", handler.CreatePromptTemplate)

	// Admin routes - restricted to elevated roles
	admin := e.Group("/admin")
	admin.Use(appmiddleware.AuthMiddleware)
	admin.Use(appmiddleware.RequireRole("admin", "superadmin"))
	admin.POST("/protections", handler.ProtectResource)
	admin.DELETE("/protections/:resourceId", handler.UnprotectResource)
	admin.PUT("/tenants/:id/quota", handler.SetTenantQuota)
	admin.GET("/audit", handler.ListAuditLog)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
