package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	service        *usecase.AuthService
	accessTokenTTL int
	logger         *zap.Logger
}

// NewAuthHandler constructs the auth handler. accessTokenTTLSeconds feeds the
// expires_in field of login responses.
func NewAuthHandler(service *usecase.AuthService, accessTokenTTLSeconds int, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{service: service, accessTokenTTL: accessTokenTTLSeconds, logger: log}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	token, account, missing, err := h.service.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrAccountNotVerified) && account != nil {
			c.JSON(http.StatusForbidden, AuthPendingResponse{
				Message:         "account pending verification",
				Account:         newAccountSummary(*account),
				MissingChannels: channelStrings(missing),
			})
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrAccountSuspended, Status: http.StatusForbidden, Message: "account is suspended"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, AuthLoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   h.accessTokenTTL,
		Account:     newAccountSummary(*account),
	})
}
