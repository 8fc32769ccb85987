package middleware

import (
	"net/http"
	"strings"

	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/jwtutil"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware verifies the JWT token and extracts claims
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		// Track authentication attempts
		prometheus.AuthAttemptsCounter.Inc()

		// Extract the token from the Authorization header
		tokenString := c.Request().Header.Get("Authorization")
		if tokenString == "" {
			log.Warn("Missing authorization token")
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:7]) == "BEARER " {
			tokenString = tokenString[7:]
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Invalid token", zap.Error(err))
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		prometheus.AuthSuccessCounter.Inc()

		// Store user information in the context
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)

		if claims.TenantID != nil {
			c.Set("tenant_id", *claims.TenantID)
			log = log.With(zap.Uint("tenant_id", *claims.TenantID))
		}

		log = log.With(
			zap.Uint("user_id", claims.UserID),
			zap.String("email", claims.Email),
			zap.String("role", claims.Role),
		)
		c.Set("logger", log)

		return next(c)
	}
}

// RequireTenantContext ensures the request has tenant context in the JWT
func RequireTenantContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		tenantID, ok := c.Get("tenant_id").(uint)
		if !ok || tenantID == 0 {
			log.Warn("Missing tenant context")
			prometheus.TenantContextMissingCounter.Inc()
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":   "tenant context required",
				"message": "Please select a tenant before accessing this resource",
			})
		}

		return next(c)
	}
}

// RequireRole restricts a route to callers holding one of the given roles.
// Guardrail and quota administration are gated behind this.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			role, _ := c.Get("role").(string)
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}

			log.Warn("Insufficient role for privileged operation", zap.String("role", role))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient privileges"})
		}
	}
}
