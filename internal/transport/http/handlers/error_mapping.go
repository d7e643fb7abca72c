package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bazarly/commerce-platform-identity/internal/transport/http/middleware"
	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Rate-limit rejections short-circuit to a 429 problem payload with Retry-After.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var limited *usecase.RateLimitExceededError
	if errors.As(err, &limited) {
		respondRateLimited(c, limited)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondRateLimited(c *gin.Context, limited *usecase.RateLimitExceededError) {
	retrySeconds := int(math.Ceil(limited.RetryAfter.Seconds()))
	if retrySeconds < 0 {
		retrySeconds = 0
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Retry-After", strconv.Itoa(retrySeconds))
	c.JSON(http.StatusTooManyRequests, middleware.ProblemDetails{
		Type:       "https://identity.bazarly.example.com/errors/rate-limit-exceeded",
		Title:      "Rate Limit Exceeded",
		Status:     http.StatusTooManyRequests,
		Detail:     "Too many requests. Try again later.",
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    middleware.GetTraceID(c),
	})
}
