package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"accessgate/internal/config"
	"accessgate/internal/database"
	"accessgate/internal/middleware"
	"accessgate/internal/modules/auth"
	"accessgate/internal/pkg/jwt"
	"accessgate/internal/pkg/response"
	"accessgate/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// useGlobalMiddleware installs the chain shared by every route. RequestLogger
// wraps ErrorLogger so recovered panics still get an access log line.
func useGlobalMiddleware(r *gin.Engine, cfg *config.Config, log zerolog.Logger) {
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.ErrorLogger(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)
}

// NewRouter assembles the session service and mounts its routes.
func NewRouter(cfg *config.Config, db *gorm.DB, store auth.RateLimitStore, log zerolog.Logger) (*gin.Engine, error) {
	accounts := repository.NewAccountRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)

	issuer := auth.NewTokenIssuer(jwt.New(cfg.JWTSecret, cfg.JWTAccessTTL), cfg.RefreshTokenPepper)
	verifier, err := auth.NewCredentialVerifier(accounts, cfg.BcryptCost, cfg.HashTimeout)
	if err != nil {
		return nil, err
	}
	limiter := auth.NewRateLimiter(store, PolicyFromConfig(cfg))
	refresh := auth.NewRefreshStore(tokens, issuer, cfg.RefreshTTL, cfg.MaxActiveSessions)
	service := auth.NewService(limiter, verifier, issuer, refresh, accounts, cfg.StoreTimeout, log)

	handler := auth.NewHandler(service, auth.CookieConfig{
		Secure:   cfg.CookieSecure,
		SameSite: auth.ParseSameSite(cfg.CookieSameSite),
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
	})

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}
	useGlobalMiddleware(r, cfg, log)

	r.GET("/healthz", healthz(db, cfg.StoreTimeout))

	v1 := r.Group("/api/v1")
	{
		handler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(service.Issuer(), auth.AccessCookieName))
		handler.RegisterProtectedRoutes(protected)
	}

	internal := r.Group("/internal/v1")
	internal.Use(middleware.InternalTokenAuth(cfg.InternalAPIToken, cfg.InternalAllowedIPs, log))
	handler.RegisterInternalRoutes(internal)

	return r, nil
}

func healthz(db *gorm.DB, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "internal_error", "Database unavailable")
			return
		}
		response.Success(c, http.StatusOK, nil)
	}
}
