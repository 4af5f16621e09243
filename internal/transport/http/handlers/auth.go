package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// AuthHandler exposes registration, login, token, session, and profile
// endpoints.
type AuthHandler struct {
	auth      *usecase.AuthService
	accessTTL time.Duration
}

// NewAuthHandler constructs AuthHandler. accessTTL is echoed to clients as
// expires_in on token-issuing responses.
func NewAuthHandler(auth *usecase.AuthService, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		accessTTL: accessTTL,
	}
}

// RegisterRoutes binds authentication routes. The limit chains run ahead of
// the credential-bearing endpoints so rate limits apply before any work.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc, loginLimit, registerLimit []gin.HandlerFunc) {
	r.POST("/register", append(append([]gin.HandlerFunc{}, registerLimit...), h.register)...)
	r.POST("/login", append(append([]gin.HandlerFunc{}, loginLimit...), h.login)...)

	r.POST("/refresh", h.refresh)
	r.POST("/logout", authMW, h.logout)
	r.POST("/logout-all", authMW, h.logoutAll)

	r.GET("/sessions", authMW, h.listSessions)
	r.DELETE("/sessions/:id", authMW, h.revokeSession)
	r.GET("/activity", authMW, h.listActivity)
	r.GET("/status", authMW, h.accountStatus)

	r.GET("/me", authMW, h.profile)
	r.PATCH("/me", authMW, h.updateProfile)
}

func (h *AuthHandler) newAuthResponse(result *usecase.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.accessTTL.Seconds()),
		User:         newUserPayload(result.User),
	}
}

// Register godoc
// @Summary Register a new account
// @Description Creates an account and returns an initial token pair.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidUsername, Status: http.StatusBadRequest, Message: "username must be 3-30 characters of letters, digits, or underscores"},
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "email address is invalid"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet the strength requirements"},
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email is already registered"},
			{Err: usecase.ErrDuplicateUsername, Status: http.StatusConflict, Message: "username is already taken"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, h.newAuthResponse(result))
}

// Login godoc
// @Summary Authenticate with username or email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req.Identifier, req.Password, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account is temporarily locked"},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusForbidden, Message: "account is deactivated"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, h.newAuthResponse(result))
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Description Rotates the refresh token; the presented token is revoked.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh payload"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	result, err := h.auth.RefreshAccessToken(c.Request.Context(), req.RefreshToken, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: security.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "refresh token expired"},
			{Err: security.ErrTokenMalformed, Status: http.StatusUnauthorized, Message: "refresh token malformed"},
			{Err: security.ErrTokenVerification, Status: http.StatusUnauthorized, Message: "refresh token invalid"},
			{Err: usecase.ErrInvalidTokenType, Status: http.StatusUnauthorized, Message: "token is not a refresh token"},
			{Err: usecase.ErrTokenRevoked, Status: http.StatusUnauthorized, Message: "refresh token has been revoked"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusUnauthorized, Message: "refresh token invalid"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account is temporarily locked"},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusForbidden, Message: "account is deactivated"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, h.newAuthResponse(result))
}

// Logout godoc
// @Summary Revoke a refresh token
// @Description Logout is idempotent; an already revoked token still returns 200.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body LogoutRequest true "Logout payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid logout payload"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID, req.RefreshToken, requestMeta(c)); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	if err := h.auth.LogoutAll(c.Request.Context(), userID, requestMeta(c)); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "all sessions revoked"})
}

// ListSessions godoc
// @Summary List active sessions for the authenticated user
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/sessions [get]
func (h *AuthHandler) listSessions(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	sessions, err := h.auth.GetActiveSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, s := range sessions {
		payloads = append(payloads, SessionPayload{
			ID:        s.ID,
			IP:        s.IP,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: payloads, Total: len(payloads)})
}

func (h *AuthHandler) revokeSession(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	sessionID := c.Param("id")
	if err := h.auth.RevokeSession(c.Request.Context(), userID, sessionID, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		}, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session revoked"})
}

// ListActivity godoc
// @Summary List recent authentication activity
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param limit query int false "Maximum entries to return"
// @Success 200 {object} ActivityListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/activity [get]
func (h *AuthHandler) listActivity(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	activities, err := h.auth.GetAuthActivityLogs(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list activity"))
		return
	}

	payloads := make([]ActivityPayload, 0, len(activities))
	for _, a := range activities {
		payloads = append(payloads, ActivityPayload{
			ID:        a.ID,
			Action:    a.Action,
			IP:        a.IP,
			UserAgent: a.UserAgent,
			Success:   a.Success,
			CreatedAt: a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, ActivityListResponse{Activities: payloads, Total: len(payloads)})
}

func (h *AuthHandler) accountStatus(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	status, err := h.auth.GetAccountStatus(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load account status")
		return
	}

	c.JSON(http.StatusOK, AccountStatusResponse{
		IsActive:            status.IsActive,
		IsLocked:            status.IsLocked,
		LockedUntil:         status.LockedUntil,
		FailedLoginAttempts: status.FailedLoginAttempts,
		PasswordChangedAt:   status.PasswordChangedAt,
		LastLogin:           status.LastLogin,
	})
}

func (h *AuthHandler) profile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, newUserPayload(*user))
}

// UpdateProfile godoc
// @Summary Update profile fields
// @Tags Authentication
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body ProfileUpdateRequest true "Profile update payload"
// @Success 200 {object} UserPayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/me [patch]
func (h *AuthHandler) updateProfile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), userID, req.Name, req.CompanyName)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, newUserPayload(*user))
}
