package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes a minimal view of an account returned by the API.
type AccountSummary struct {
	ID            string               `json:"id"`
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	Status        domain.AccountStatus `json:"status"`
	Email         *string              `json:"email,omitempty"`
	Phone         *string              `json:"phone,omitempty"`
	EmailVerified bool                 `json:"email_verified"`
	PhoneVerified bool                 `json:"phone_verified"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Email           string `json:"email" binding:"omitempty"`
	Phone           string `json:"phone" binding:"omitempty"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// RegistrationResponse contains registration results and next steps.
type RegistrationResponse struct {
	Account          AccountSummary `json:"account"`
	RequiredChannels []string       `json:"required_channels"`
	Message          string         `json:"message,omitempty"`
}

// VerifyEmailRequest holds the emailed verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResendEmailRequest asks for a fresh email verification token.
type ResendEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// SendOTPRequest asks for a fresh phone verification code.
type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyOTPRequest submits the phone verification code.
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerificationResponse is returned after a successful channel verification.
type VerificationResponse struct {
	Message   string         `json:"message"`
	Account   AccountSummary `json:"account"`
	Activated bool           `json:"activated"`
}

// AuthLoginRequest defines the payload for the login endpoint.
type AuthLoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// AuthLoginResponse describes the response returned for a successful login.
type AuthLoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Account     AccountSummary `json:"account"`
}

// AuthPendingResponse is returned when a login requires additional verification.
type AuthPendingResponse struct {
	Message         string         `json:"message"`
	Account         AccountSummary `json:"account"`
	MissingChannels []string       `json:"missing_channels"`
}

// PasswordChangeRequest captures a password change request body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordForgotRequest represents a password reset initiation payload.
type PasswordForgotRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// PasswordResetRequest captures a password reset confirmation payload.
type PasswordResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newAccountSummary converts a domain account to a summary suitable for API responses.
func newAccountSummary(account domain.Account) AccountSummary {
	summary := AccountSummary{
		ID:            account.ID,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Status:        account.Status,
		EmailVerified: account.EmailVerified,
		PhoneVerified: account.PhoneVerified,
	}

	if account.Email != nil && *account.Email != "" {
		summary.Email = account.Email
	}
	if account.Phone != nil && *account.Phone != "" {
		summary.Phone = account.Phone
	}

	return summary
}

func channelStrings(channels []domain.VerificationChannel) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		out = append(out, string(ch))
	}
	return out
}
