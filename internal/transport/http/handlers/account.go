package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// AccountHandler exposes deactivation, reactivation, and unlock endpoints.
type AccountHandler struct {
	accounts  *usecase.AccountService
	accessTTL time.Duration
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts *usecase.AccountService, accessTTL time.Duration) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		accessTTL: accessTTL,
	}
}

// Deactivate godoc
// @Summary Deactivate the authenticated account
// @Description Requires the account password and revokes all sessions.
// @Tags Account
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body DeactivateRequest true "Deactivation payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/account/deactivate [post]
func (h *AccountHandler) Deactivate(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid deactivation payload"))
		return
	}

	if err := h.accounts.Deactivate(c.Request.Context(), userID, req.Password, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrIncorrectPassword, Status: http.StatusUnauthorized, Message: "password is incorrect"},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusConflict, Message: "account is already deactivated"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to deactivate account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deactivated"})
}

// Reactivate godoc
// @Summary Reactivate a deactivated account
// @Description Authenticates with credentials and returns a fresh token pair.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body ReactivateRequest true "Reactivation payload"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/account/reactivate [post]
func (h *AccountHandler) Reactivate(c *gin.Context) {
	var req ReactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reactivation payload"))
		return
	}

	result, err := h.accounts.Reactivate(c.Request.Context(), req.Identifier, req.Password, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrAccountAlreadyActive, Status: http.StatusConflict, Message: "account is already active"},
		}, http.StatusInternalServerError, "failed to reactivate account")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.accessTTL.Seconds()),
		User:         newUserPayload(result.User),
	})
}

// ChangeEmail godoc
// @Summary Change the authenticated account email
// @Description Requires the account password. Both addresses are notified.
// @Tags Account
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body ChangeEmailRequest true "Email change payload"
// @Success 200 {object} UserPayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/account/email [post]
func (h *AccountHandler) ChangeEmail(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ChangeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid email change payload"))
		return
	}

	user, err := h.accounts.ChangeEmail(c.Request.Context(), userID, req.Password, req.NewEmail, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "email is not valid"},
			{Err: usecase.ErrIncorrectPassword, Status: http.StatusUnauthorized, Message: "password is incorrect"},
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to change email")
		return
	}

	c.JSON(http.StatusOK, newUserPayload(*user))
}

// Unlock godoc
// @Summary Request an early release of a login lockout
// @Description Always returns 202 so the response does not reveal whether the
// email is registered or locked.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body UnlockRequest true "Unlock payload"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/account/unlock [post]
func (h *AccountHandler) Unlock(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid unlock payload"))
		return
	}

	if _, err := h.accounts.UnlockAccount(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process unlock request"))
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{
		Message: "if the account exists and was locked, it has been unlocked",
	})
}
