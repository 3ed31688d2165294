package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func internalRouter(token string, ips []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(InternalTokenAuth(token, ips, zerolog.Nop()))
	router.POST("/internal", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestInternalTokenAuth(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		ips      []string
		header   string
		remote   string
		wantCode int
	}{
		{"valid token", "s3cret", nil, "Bearer s3cret", "192.0.2.1:1234", http.StatusOK},
		{"allowed ip", "s3cret", []string{"192.0.2.1"}, "Bearer s3cret", "192.0.2.1:1234", http.StatusOK},
		{"ip not allowed", "s3cret", []string{"192.0.2.1"}, "Bearer s3cret", "192.0.2.2:1234", http.StatusForbidden},
		{"missing header", "s3cret", nil, "", "192.0.2.1:1234", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", nil, "Token s3cret", "192.0.2.1:1234", http.StatusUnauthorized},
		{"wrong token", "s3cret", nil, "Bearer nope", "192.0.2.1:1234", http.StatusForbidden},
		{"not configured", "", nil, "Bearer ", "192.0.2.1:1234", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/internal", nil)
			req.RemoteAddr = tt.remote
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			internalRouter(tt.token, tt.ips).ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
