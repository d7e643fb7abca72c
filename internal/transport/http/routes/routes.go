package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/infra/config"
	"github.com/bazarly/commerce-platform-identity/internal/transport/http/handlers"
	"github.com/bazarly/commerce-platform-identity/internal/transport/http/middleware"
	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Verification *usecase.VerificationService
	OTP          *usecase.OTPService
	Password     *usecase.PasswordService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration, deps.Logger)
		verificationHandler := handlers.NewVerificationHandler(deps.Services.Verification, deps.Services.OTP, deps.Logger)
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Password, deps.Logger)

		ttlSeconds := int(deps.Config.JWT.AccessTokenTTL.Seconds())
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, ttlSeconds, deps.Logger)

		accountGroup := api.Group("/account")
		registerHandlers := appendRule(deps, "register_ip", deps.Config.RateLimit.RegisterMaxAttempts, deps.Config.RateLimit.WindowDuration)
		accountGroup.POST("/register", append(registerHandlers, registrationHandler.Register)...)
		accountGroup.POST("/verify-email", verificationHandler.VerifyEmail)
		accountGroup.POST("/resend-email", verificationHandler.ResendEmail)
		accountGroup.POST("/send-otp", verificationHandler.SendOTP)
		accountGroup.POST("/resend-otp", verificationHandler.SendOTP)
		accountGroup.POST("/verify-otp", verificationHandler.VerifyOTP)

		authGroup := api.Group("/auth")
		loginHandlers := appendRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, deps.Config.RateLimit.WindowDuration)
		authGroup.POST("/login", append(loginHandlers, authHandler.Login)...)

		passwordGroup := api.Group("/password")
		passwordGroup.POST("/change", authMiddleware, passwordHandler.Change)
		forgotHandlers := appendRule(deps, "password_forgot_ip", deps.Config.RateLimit.RegisterMaxAttempts, deps.Config.RateLimit.WindowDuration)
		passwordGroup.POST("/forgot", append(forgotHandlers, passwordHandler.Forgot)...)
		passwordGroup.POST("/reset", passwordHandler.Reset)
	}

	return r
}

// appendRule builds the per-IP rate limit middleware chain for an endpoint.
func appendRule(deps Dependencies, name string, limit int, window time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
