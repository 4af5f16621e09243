package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// PasswordHandler exposes the password reset and change endpoints.
type PasswordHandler struct {
	passwords *usecase.PasswordService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

// ForgotPassword godoc
// @Summary Initiate a password reset
// @Description Always returns 202 so the response does not reveal whether the
// email is registered.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Reset initiation payload"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/password/forgot [post]
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password reset payload"))
		return
	}

	if _, err := h.passwords.InitiatePasswordReset(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to initiate password reset"))
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{
		Message: "if the account exists, reset instructions have been sent",
	})
}

// ResetPassword godoc
// @Summary Complete a password reset with an emailed token
// @Description A successful reset revokes every active session.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset confirmation payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/password/reset [post]
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password reset payload"))
		return
	}

	err := h.passwords.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet the strength requirements"},
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusUnprocessableEntity, Message: "reset token is invalid or expired"},
			{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Message: "password was used recently, choose a different one"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset, please log in again"})
}

// ChangePassword godoc
// @Summary Change the password of the authenticated user
// @Description Existing sessions stay valid after a change.
// @Tags Password
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body ChangePasswordRequest true "Password change payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/password/change [post]
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password change payload"))
		return
	}

	err := h.passwords.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet the strength requirements"},
			{Err: usecase.ErrIncorrectPassword, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Message: "password was used recently, choose a different one"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
