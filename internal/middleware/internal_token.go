package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"accessgate/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// InternalTokenAuth protects support endpoints with a static bearer token and
// an optional client IP allow-list. An empty token disables the endpoints.
func InternalTokenAuth(token string, allowedIPs []string, log zerolog.Logger) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if token == "" {
			logAuthFailure(log, c, http.StatusForbidden, "token_not_configured")
			response.Error(c, http.StatusForbidden, "forbidden", "Internal API is disabled")
			c.Abort()
			return
		}

		if len(allowed) > 0 && !allowed[c.ClientIP()] {
			logAuthFailure(log, c, http.StatusForbidden, "ip_not_allowed")
			response.Error(c, http.StatusForbidden, "forbidden", "IP not allowed")
			c.Abort()
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			logAuthFailure(log, c, http.StatusUnauthorized, "missing_auth")
			response.Error(c, http.StatusUnauthorized, "unauthorized", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			logAuthFailure(log, c, http.StatusForbidden, "invalid_token")
			response.Error(c, http.StatusForbidden, "forbidden", "Invalid internal token")
			c.Abort()
			return
		}

		c.Next()
	}
}

func logAuthFailure(log zerolog.Logger, c *gin.Context, status int, reason string) {
	log.Warn().
		Str("component", "internal_auth").
		Int("status", status).
		Str("request_id", RequestIDFrom(c)).
		Str("client_ip", c.ClientIP()).
		Str("reason", reason).
		Msg("internal request rejected")
}
