package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

const scopeLogin = "login"

var (
	// ErrInvalidCredentials indicates the identifier or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotVerified indicates the account is still pending channel verification.
	ErrAccountNotVerified = errors.New("account pending verification")
	// ErrAccountSuspended indicates the account was administratively disabled.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrInvalidAccessToken indicates the access token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// AuthConfig carries token issuance and login throttling parameters.
type AuthConfig struct {
	JWTSecret        string
	AccessTokenTTL   time.Duration
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// AccessTokenClaims are the registered claims carried by issued access tokens.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}

// AuthService authenticates accounts and issues signed access tokens.
type AuthService struct {
	accounts port.AccountRepository
	limiter  *RateLimiter
	cfg      AuthConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(accounts port.AccountRepository, limiter *RateLimiter, cfg AuthConfig, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	return &AuthService{
		accounts: accounts,
		limiter:  limiter,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Authenticate verifies the identifier/password pair and issues an access
// token. Pending accounts are rejected with the channels still awaiting
// verification; the password is checked first so the response does not reveal
// account state to a caller without valid credentials.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (string, *domain.Account, []domain.VerificationChannel, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", nil, nil, ErrInvalidCredentials
	}

	if err := s.limiter.Allow(ctx, scopeLogin, strings.ToLower(identifier), s.cfg.LoginMaxAttempts, s.cfg.LoginWindow); err != nil {
		return "", nil, nil, err
	}

	account, err := s.accounts.GetByIdentifier(ctx, strings.ToLower(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return "", nil, nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", nil, nil, ErrInvalidCredentials
	}

	switch account.Status {
	case domain.AccountStatusSuspended:
		return "", nil, nil, ErrAccountSuspended
	case domain.AccountStatusPending:
		return "", account, account.MissingChannels(), ErrAccountNotVerified
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return "", nil, nil, err
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, s.now().UTC()); err != nil {
		s.logger.Warn("update last login failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}

	return token, account, nil, nil
}

// IssueToken signs a short-lived HS256 access token for the account.
func (s *AuthService) IssueToken(account *domain.Account) (string, error) {
	if s.cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}

	now := s.now().UTC()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ParseAccessToken validates the signature and expiry of an access token.
func (s *AuthService) ParseAccessToken(raw string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil || !token.Valid {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
