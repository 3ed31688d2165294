package auth

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"accessgate/internal/pkg/response"
	"accessgate/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	maxPasswordBytes = 72
)

// CookieConfig holds the attributes shared by both session cookies.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Path     string
	Domain   string
}

// Handler maps session results onto HTTP responses and cookies.
type Handler struct {
	service *Service
	cookies CookieConfig
	now     func() time.Time
}

func NewHandler(service *Service, cookies CookieConfig) *Handler {
	if cookies.Path == "" {
		cookies.Path = "/api/v1/auth"
	}
	return &Handler{service: service, cookies: cookies, now: time.Now}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
	}
}

// RegisterProtectedRoutes expects a group that already runs JWTAuth.
func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/auth/me", h.Me)
}

// RegisterInternalRoutes expects a group that already runs InternalTokenAuth.
func (h *Handler) RegisterInternalRoutes(internal *gin.RouterGroup) {
	internal.POST("/lockouts/clear", h.ClearLockout)
	internal.POST("/accounts/:id/sessions/revoke", h.RevokeAllSessions)
}

// Login authenticates a user and sets the session cookies.
// @Summary		Login
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	LoginRequest	true	"credentials"
// @Success		200	{object}	map[string]interface{}
// @Failure		400,401,403,429,500	{object}	map[string]interface{}
// @Router		/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "validation_error", "Invalid request body", gin.H{"fields": fields})
		return
	}
	if len(req.Password) > maxPasswordBytes {
		response.ErrorWithDetails(c, http.StatusBadRequest, "validation_error", "Invalid request body", gin.H{"fields": gin.H{"password": "max"}})
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Client:     clientMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookies(c, result.Session.Tokens)
	response.Success(c, http.StatusOK, gin.H{"account": result.Session.Account})
}

// Refresh rotates the refresh cookie and issues a new access cookie.
// @Summary		Refresh session
// @Tags		Auth
// @Produce		json
// @Success		200	{object}	map[string]interface{}
// @Failure		401,500	{object}	map[string]interface{}
// @Router		/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(RefreshCookieName)

	result, err := h.service.Refresh(c.Request.Context(), RefreshInput{
		RefreshToken: raw,
		Client:       clientMeta(c),
	})
	if err != nil {
		if result != nil && result.ClearCookies {
			h.clearSessionCookies(c)
		}
		h.writeError(c, err)
		return
	}

	h.setSessionCookies(c, result.Session.Tokens)
	response.Success(c, http.StatusOK, gin.H{"account": result.Session.Account})
}

// Logout revokes the refresh token and clears both cookies.
// @Summary		Logout
// @Tags		Auth
// @Success		200	{object}	map[string]interface{}
// @Router		/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	raw, _ := c.Cookie(RefreshCookieName)
	h.service.Logout(c.Request.Context(), raw)

	h.clearSessionCookies(c)
	response.Success(c, http.StatusOK, nil)
}

// Me returns the account behind the access token.
// @Summary		Current account
// @Tags		Auth
// @Security	BearerAuth
// @Success		200	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Router		/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	accountID := c.GetInt64("account_id")
	account, err := h.service.Me(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"account": account})
}

func (h *Handler) ClearLockout(c *gin.Context) {
	var req ClearLockoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "validation_error", "Invalid request body", gin.H{"fields": fields})
		return
	}

	if err := h.service.ClearLockout(c.Request.Context(), req.Key); err != nil {
		if errors.Is(err, ErrInvalidLockoutKey) {
			response.Error(c, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, nil)
}

func (h *Handler) RevokeAllSessions(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || accountID <= 0 {
		response.Error(c, http.StatusBadRequest, "validation_error", "Invalid account id")
		return
	}

	n, err := h.service.RevokeAllSessions(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": n})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	reason := ReasonOf(err)
	status := statusForReason(reason)

	var se *SessionError
	if reason == ReasonRateLimited && errors.As(err, &se) && se.LockedUntil != nil {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(*se.LockedUntil, h.now())))
		response.ErrorWithDetails(c, status, string(reason), messageForReason(reason), gin.H{
			"locked_until": se.LockedUntil.UTC().Format(time.RFC3339),
		})
		return
	}
	response.Error(c, status, string(reason), messageForReason(reason))
}

func statusForReason(reason Reason) int {
	switch reason {
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonInvalidCredentials, ReasonInvalidRefresh:
		return http.StatusUnauthorized
	case ReasonUnverifiedAccount:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func messageForReason(reason Reason) string {
	switch reason {
	case ReasonRateLimited:
		return "Too many failed attempts, try again later"
	case ReasonInvalidCredentials:
		return "Invalid identifier or password"
	case ReasonUnverifiedAccount:
		return "Account is not verified"
	case ReasonInvalidRefresh:
		return "Refresh token is invalid or expired"
	default:
		return "Internal error"
	}
}

func retryAfterSeconds(until, now time.Time) int {
	secs := int(math.Ceil(until.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (h *Handler) setSessionCookies(c *gin.Context, t Tokens) {
	now := h.now()
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(AccessCookieName, t.AccessToken, maxAgeUntil(t.AccessExpiresAt, now), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(RefreshCookieName, t.RefreshToken, maxAgeUntil(t.RefreshExpiresAt, now), h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(AccessCookieName, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(RefreshCookieName, "", -1, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}

func maxAgeUntil(expiresAt, now time.Time) int {
	secs := int(expiresAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

func clientMeta(c *gin.Context) ClientMeta {
	return ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// ParseSameSite maps a config value onto http.SameSite, defaulting to Lax.
func ParseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
