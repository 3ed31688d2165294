package middleware

import (
	"net/http"
	"strings"

	"accessgate/internal/pkg/jwt"
	"accessgate/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccessTokenVerifier validates access tokens without touching storage.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// JWTAuth accepts the access token from the named cookie or an
// Authorization: Bearer header. A cookie token that fails verification does
// not shadow a valid header token. It sets account_id and role.
func JWTAuth(verifier AccessTokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates := accessTokens(c, cookieName)
		if len(candidates) == 0 {
			response.Error(c, http.StatusUnauthorized, "invalid_credentials", "Authentication required")
			c.Abort()
			return
		}

		var claims *jwt.Claims
		for _, token := range candidates {
			if cl, err := verifier.VerifyAccessToken(token); err == nil {
				claims = cl
				break
			}
		}
		if claims == nil {
			response.Error(c, http.StatusUnauthorized, "invalid_credentials", "Access token is invalid or expired")
			c.Abort()
			return
		}

		c.Set("account_id", claims.AccountID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// accessTokens lists the presented tokens, cookie first.
func accessTokens(c *gin.Context, cookieName string) []string {
	var tokens []string
	if v, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(v) != "" {
		tokens = append(tokens, strings.TrimSpace(v))
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && strings.TrimSpace(parts[1]) != "" {
		tokens = append(tokens, strings.TrimSpace(parts[1]))
	}
	return tokens
}
