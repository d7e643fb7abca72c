package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/config"
	"github.com/bazarly/commerce-platform-identity/internal/infra/database"
	kafkainfra "github.com/bazarly/commerce-platform-identity/internal/infra/kafka"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
	"github.com/bazarly/commerce-platform-identity/internal/infra/notify"
	redisinfra "github.com/bazarly/commerce-platform-identity/internal/infra/redis"
	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	postgresrepo "github.com/bazarly/commerce-platform-identity/internal/repository/postgres"
	redisrepo "github.com/bazarly/commerce-platform-identity/internal/repository/redis"
	"github.com/bazarly/commerce-platform-identity/internal/transport/http/middleware"
	"github.com/bazarly/commerce-platform-identity/internal/transport/http/routes"
	"github.com/bazarly/commerce-platform-identity/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg          *config.AppConfig
	engine       *gin.Engine
	logger       *zap.Logger
	pool         *pgxpool.Pool
	redis        *redisinfra.Client
	verification *usecase.VerificationService
}

// New wires configuration into a ready-to-run application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	otpStore := redisrepo.NewOTPStore(redisClient.Client(), cfg.Redis.OTPPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RatePrefix,
		TTL:       maxDuration(rateLimitWindow, cfg.RateLimit.OTPSendWindow, cfg.RateLimit.EmailResendWindow) * 2,
	})
	limiter := usecase.NewRateLimiter(rateLimitStore)
	ipLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	emailSender := notify.NewSMTPEmailSender(cfg.SMTP, log)
	smsSender := notify.NewHTTPSMSSender(cfg.SMS, log)

	emailValidator := security.NewEmailValidator(cfg.Password.DisposableDomains)
	passwordValidator := security.NewPasswordValidator(
		security.PasswordStrength(strings.ToLower(cfg.Password.MinStrength)),
		security.MinLengthRule(cfg.Password.MinLength),
		security.RequireCharacterClassesRule(cfg.Password.MinClasses),
	)

	verificationService := usecase.NewVerificationService(
		repos.Accounts, repos.Tokens, emailSender, eventPublisher, limiter,
		usecase.VerificationConfig{
			EmailTokenTTL:     cfg.Verification.EmailTokenTTL,
			ResetTokenTTL:     cfg.Verification.ResetTokenTTL,
			EmailResendLimit:  cfg.RateLimit.EmailResendLimit,
			EmailResendWindow: cfg.RateLimit.EmailResendWindow,
		}, log)

	otpService := usecase.NewOTPService(
		repos.Accounts, otpStore, smsSender, eventPublisher, limiter,
		usecase.OTPConfig{
			Length:         cfg.Verification.OTPLength,
			TTL:            cfg.Verification.OTPTTL,
			MaxAttempts:    cfg.Verification.OTPMaxAttempts,
			SendLimit:      cfg.RateLimit.OTPSendLimit,
			SendWindow:     cfg.RateLimit.OTPSendWindow,
			ResendCooldown: cfg.RateLimit.OTPResendCooldown,
		}, log)

	registrationService := usecase.NewRegistrationService(
		repos.Accounts, repos.Tokens, verificationService, otpService,
		eventPublisher, emailValidator, passwordValidator, log)

	passwordService := usecase.NewPasswordService(
		repos.Accounts, verificationService, emailSender, eventPublisher,
		passwordValidator, cfg.Password.HistoryLimit, log)

	authService := usecase.NewAuthService(repos.Accounts, limiter, usecase.AuthConfig{
		JWTSecret:        cfg.JWT.Secret,
		AccessTokenTTL:   cfg.JWT.AccessTokenTTL,
		LoginMaxAttempts: cfg.RateLimit.LoginMaxAttempts,
		LoginWindow:      rateLimitWindow,
	}, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: ipLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Verification: verificationService,
			OTP:          otpService,
			Password:     passwordService,
		},
	})

	return &Application{
		cfg:          cfg,
		engine:       engine,
		logger:       log,
		pool:         pool,
		redis:        redisClient,
		verification: verificationService,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
// A background ticker sweeps expired verification tokens for the lifetime of
// the server.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweepExpiredTokens(sweepCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) sweepExpiredTokens(ctx context.Context) {
	interval := a.cfg.Verification.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := a.verification.SweepExpiredTokens(ctx)
			if err != nil {
				a.logger.Warn("token sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				a.logger.Info("expired tokens swept", zap.Int("count", swept))
			}
		}
	}
}

func maxDuration(values ...time.Duration) time.Duration {
	var max time.Duration
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
