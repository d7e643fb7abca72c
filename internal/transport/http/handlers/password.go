package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/transport/http/middleware"
	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// PasswordHandler exposes the password change and forgot/reset endpoints.
type PasswordHandler struct {
	service *usecase.PasswordService
	logger  *zap.Logger
}

// NewPasswordHandler constructs the password handler.
func NewPasswordHandler(service *usecase.PasswordService, log *zap.Logger) *PasswordHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordHandler{service: service, logger: log}
}

// Change handles POST /api/v1/password/change. Requires authentication.
func (h *PasswordHandler) Change(c *gin.Context) {
	accountID := c.GetString(middleware.AccountIDKey)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "new password does not meet the security requirements"},
			{Err: usecase.ErrPasswordAlreadyUsed, Status: http.StatusBadRequest, Message: "new password must differ from previous passwords"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "password change failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// Forgot handles POST /api/v1/password/forgot. The response does not reveal
// whether the identifier is registered.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req PasswordForgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.service.RequestReset(c.Request.Context(), req.Identifier); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "could not process reset request")
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "if the account exists, reset instructions have been sent"})
}

// Reset handles POST /api/v1/password/reset.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenInvalid, Status: http.StatusBadRequest, Message: "reset token is invalid or already used"},
			{Err: usecase.ErrTokenExpired, Status: http.StatusGone, Message: "reset token has expired, request a new one"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "new password does not meet the security requirements"},
			{Err: usecase.ErrPasswordAlreadyUsed, Status: http.StatusBadRequest, Message: "new password must differ from previous passwords"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "password reset failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset"})
}
