package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// VerificationHandler exposes the email token and phone OTP verification endpoints.
type VerificationHandler struct {
	verification *usecase.VerificationService
	otps         *usecase.OTPService
	logger       *zap.Logger
}

// NewVerificationHandler constructs the verification handler.
func NewVerificationHandler(verification *usecase.VerificationService, otps *usecase.OTPService, log *zap.Logger) *VerificationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationHandler{verification: verification, otps: otps, logger: log}
}

// VerifyEmail handles POST /api/v1/account/verify-email.
func (h *VerificationHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	account, activated, err := h.verification.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenInvalid, Status: http.StatusBadRequest, Message: "verification token is invalid or already used"},
			{Err: usecase.ErrTokenExpired, Status: http.StatusGone, Message: "verification token has expired, request a new one"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "email verification failed")
		return
	}

	c.JSON(http.StatusOK, VerificationResponse{
		Message:   "email verified",
		Account:   newAccountSummary(*account),
		Activated: activated,
	})
}

// ResendEmail handles POST /api/v1/account/resend-email.
func (h *VerificationHandler) ResendEmail(c *gin.Context) {
	var req ResendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.verification.ResendVerificationEmail(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrChannelAlreadyVerified, Status: http.StatusConflict, Message: "email address is already verified"},
			{Err: usecase.ErrTokenInvalid, Status: http.StatusBadRequest, Message: "email address is required"},
		}, http.StatusInternalServerError, "could not resend verification email")
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "if the address is registered, a verification email has been sent"})
}

// SendOTP handles POST /api/v1/account/send-otp and /account/resend-otp.
func (h *VerificationHandler) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.otps.Send(c.Request.Context(), req.Phone); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: security.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "phone number is not a valid Bangladesh mobile number"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "no account registered with this phone"},
			{Err: usecase.ErrChannelAlreadyVerified, Status: http.StatusConflict, Message: "phone number is already verified"},
		}, http.StatusInternalServerError, "could not send verification code")
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "verification code sent"})
}

// VerifyOTP handles POST /api/v1/account/verify-otp.
func (h *VerificationHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	account, activated, err := h.otps.Verify(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: security.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "phone number is not a valid Bangladesh mobile number"},
			{Err: usecase.ErrOTPNotFound, Status: http.StatusNotFound, Message: "no active verification code for this phone, request a new one"},
			{Err: usecase.ErrOTPInvalid, Status: http.StatusBadRequest, Message: "verification code is incorrect"},
			{Err: usecase.ErrOTPExpired, Status: http.StatusGone, Message: "verification code has expired, request a new one"},
			{Err: usecase.ErrOTPMaxAttempts, Status: http.StatusTooManyRequests, Message: "too many incorrect attempts, request a new code"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "phone verification failed")
		return
	}

	c.JSON(http.StatusOK, VerificationResponse{
		Message:   "phone verified",
		Account:   newAccountSummary(*account),
		Activated: activated,
	})
}
