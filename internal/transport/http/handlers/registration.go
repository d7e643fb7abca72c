package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// RegistrationHandler exposes the account registration endpoint.
type RegistrationHandler struct {
	service *usecase.RegistrationService
	logger  *zap.Logger
}

// NewRegistrationHandler constructs the registration handler.
func NewRegistrationHandler(service *usecase.RegistrationService, log *zap.Logger) *RegistrationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationHandler{service: service, logger: log}
}

// Register handles POST /api/v1/account/register.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	result, err := h.service.Register(c.Request.Context(), usecase.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.logger.Debug("registration rejected", zap.Error(err))

		// Conflicts name the offending field so the client knows which
		// identifier is taken.
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			c.JSON(http.StatusConflict, NewErrorResponse(c,
				fmt.Sprintf("an account with this %s already exists", dup.Field)))
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "required registration fields are missing"},
			{Err: security.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "email address is not valid"},
			{Err: security.ErrDisposableEmail, Status: http.StatusBadRequest, Message: "disposable email addresses are not accepted"},
			{Err: security.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "phone number is not a valid Bangladesh mobile number"},
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "password and confirmation do not match"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet the security requirements"},
			{Err: repository.ErrConflict, Status: http.StatusConflict, Message: "an account with this email or phone already exists"},
			{Err: usecase.ErrVerificationDispatchFailed, Status: http.StatusBadGateway, Message: "could not deliver verification, please try again"},
		}, http.StatusInternalServerError, "registration could not be processed")
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Account:          newAccountSummary(result.Account),
		RequiredChannels: channelStrings(result.RequiredChannels),
		Message:          "account created, verification required",
	})
}
