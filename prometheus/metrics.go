package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter         prometheus.Counter
	AuthSuccessCounter          prometheus.Counter
	AuthErrorsCounter           prometheus.Counter
	TenantContextMissingCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Webhook pipeline metrics
	MessagesProcessedCounter *prometheus.CounterVec
	MessagesDroppedCounter   *prometheus.CounterVec

	// Agent metrics
	AgentRepliesCounter   prometheus.Counter
	AgentFallbacksCounter prometheus.Counter
	AgentActionsCounter   *prometheus.CounterVec

	// Guardrail metrics
	GuardrailDeniesCounter *prometheus.CounterVec

	// Quota metrics
	QuotaDeniesCounter prometheus.Counter

	// Knowledge metrics
	KnowledgeSearchCounter prometheus.Counter
	KnowledgeUploadCounter *prometheus.CounterVec
)

var initOnce sync.Once

// InitMetrics initializes Prometheus metrics with configuration.
// Registration happens once per process; later calls are no-ops.
func InitMetrics(cfg *config.Config) {
	initOnce.Do(func() { registerMetrics(cfg.Metrics.Prefix) })
}

func registerMetrics(prefix string) {

	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthSuccessCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
	)

	TenantContextMissingCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_context_missing_total",
			Help: "Total number of requests without tenant context",
		},
	)

	// Database operation metrics
	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Webhook pipeline metrics
	MessagesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_messages_processed_total",
			Help: "Total number of inbound messages processed by the pipeline",
		},
		[]string{"outcome"},
	)

	MessagesDroppedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_messages_dropped_total",
			Help: "Total number of inbound messages dropped before processing",
		},
		[]string{"reason"},
	)

	// Agent metrics
	AgentRepliesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_agent_replies_total",
			Help: "Total number of automated replies produced by the agent",
		},
	)

	AgentFallbacksCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_agent_fallbacks_total",
			Help: "Total number of fallback replies caused by upstream failures",
		},
	)

	AgentActionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_agent_actions_total",
			Help: "Total number of actions detected in agent replies",
		},
		[]string{"action"},
	)

	// Guardrail metrics
	GuardrailDeniesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_guardrail_denies_total",
			Help: "Total number of operations denied by the resource guardrail",
		},
		[]string{"operation"},
	)

	// Quota metrics
	QuotaDeniesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_quota_denies_total",
			Help: "Total number of channel creations blocked by tenant quota",
		},
	)

	// Knowledge metrics
	KnowledgeSearchCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_knowledge_searches_total",
			Help: "Total number of knowledge base searches",
		},
	)

	KnowledgeUploadCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_knowledge_uploads_total",
			Help: "Total number of knowledge document uploads",
		},
		[]string{"outcome"},
	)
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			method := c.Request().Method
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)

			HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
			HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration)

			return err
		}
	}
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordMessageProcessed increments the pipeline outcome counter
func RecordMessageProcessed(outcome string) {
	MessagesProcessedCounter.WithLabelValues(outcome).Inc()
}

// RecordMessageDropped increments the dropped message counter
func RecordMessageDropped(reason string) {
	MessagesDroppedCounter.WithLabelValues(reason).Inc()
}

// RecordAgentAction increments the detected action counter
func RecordAgentAction(action string) {
	AgentActionsCounter.WithLabelValues(action).Inc()
}

// RecordGuardrailDeny increments the guardrail denial counter
func RecordGuardrailDeny(operation string) {
	GuardrailDeniesCounter.WithLabelValues(operation).Inc()
}
