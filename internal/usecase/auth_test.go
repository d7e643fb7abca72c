package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
)

const loginPassword = "Valid&Unguessable#Phrase3"

type authFixture struct {
	accounts *fakeAccountRepository
	service  *AuthService
	now      time.Time
}

func newAuthFixture(t *testing.T, cfg AuthConfig) *authFixture {
	t.Helper()

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}

	f := &authFixture{
		accounts: newFakeAccountRepository(),
		now:      time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}

	limiter := NewRateLimiter(newMemoryRateLimitStore())
	limiter.WithClock(func() time.Time { return f.now })

	f.service = NewAuthService(f.accounts, limiter, cfg, nil)
	f.service.WithClock(func() time.Time { return f.now })
	return f
}

func (f *authFixture) addAccount(t *testing.T, status domain.AccountStatus, emailVerified bool) domain.Account {
	t.Helper()

	hash, err := security.HashPassword(loginPassword)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	email := "buyer@example.com"
	account := domain.Account{
		ID:            "acc-1",
		FirstName:     "Rahim",
		LastName:      "Uddin",
		Email:         &email,
		PasswordHash:  hash,
		PasswordAlgo:  "argon2id",
		Status:        status,
		EmailVerified: emailVerified,
		CreatedAt:     f.now,
	}
	f.accounts.add(account)
	return account
}

func TestAuthenticateIssuesToken(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{AccessTokenTTL: 15 * time.Minute})
	f.addAccount(t, domain.AccountStatusActive, true)

	token, account, missing, err := f.service.Authenticate(context.Background(), "buyer@example.com", loginPassword)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a signed token")
	}
	if account.ID != "acc-1" {
		t.Fatalf("expected acc-1, got %s", account.ID)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no missing channels, got %v", missing)
	}

	claims, err := f.service.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken returned error: %v", err)
	}
	if claims.Subject != "acc-1" {
		t.Fatalf("expected subject acc-1, got %s", claims.Subject)
	}

	if _, ok := f.accounts.lastLogins["acc-1"]; !ok {
		t.Fatal("expected last login to be recorded")
	}
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addAccount(t, domain.AccountStatusActive, true)

	if _, _, _, err := f.service.Authenticate(context.Background(), "buyer@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, _, err := f.service.Authenticate(context.Background(), "nobody@example.com", loginPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown identifier, got %v", err)
	}
	if _, _, _, err := f.service.Authenticate(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for blank input, got %v", err)
	}
}

func TestAuthenticatePendingAccountListsMissingChannels(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addAccount(t, domain.AccountStatusPending, false)

	token, account, missing, err := f.service.Authenticate(context.Background(), "buyer@example.com", loginPassword)
	if !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}
	if token != "" {
		t.Fatal("expected no token for pending account")
	}
	if account == nil {
		t.Fatal("expected the pending account to be returned")
	}
	if len(missing) != 1 || missing[0] != domain.ChannelEmail {
		t.Fatalf("expected email to be missing, got %v", missing)
	}
}

func TestAuthenticatePendingRequiresValidPassword(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addAccount(t, domain.AccountStatusPending, false)

	// A caller without credentials must not learn the account state.
	_, account, _, err := f.service.Authenticate(context.Background(), "buyer@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if account != nil {
		t.Fatal("expected no account detail on credential failure")
	}
}

func TestAuthenticateSuspendedAccount(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addAccount(t, domain.AccountStatusSuspended, true)

	if _, _, _, err := f.service.Authenticate(context.Background(), "buyer@example.com", loginPassword); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("expected ErrAccountSuspended, got %v", err)
	}
}

func TestAuthenticateThrottled(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{LoginMaxAttempts: 2, LoginWindow: time.Minute})
	f.addAccount(t, domain.AccountStatusActive, true)

	for i := 0; i < 2; i++ {
		if _, _, _, err := f.service.Authenticate(context.Background(), "buyer@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, _, _, err := f.service.Authenticate(context.Background(), "buyer@example.com", loginPassword)
	var limitErr *RateLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RateLimitExceededError, got %v", err)
	}
	if limitErr.RetryAfter <= 0 || limitErr.RetryAfter > time.Minute {
		t.Fatalf("expected retry hint within the window, got %v", limitErr.RetryAfter)
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{AccessTokenTTL: 15 * time.Minute})
	account := f.addAccount(t, domain.AccountStatusActive, true)

	token, err := f.service.IssueToken(&account)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.service.ParseAccessToken(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken after expiry, got %v", err)
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	account := f.addAccount(t, domain.AccountStatusActive, true)

	token, err := f.service.IssueToken(&account)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	other := newAuthFixture(t, AuthConfig{JWTSecret: "other-secret"})
	if _, err := other.service.ParseAccessToken(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken for wrong secret, got %v", err)
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	service := NewAuthService(newFakeAccountRepository(), nil, AuthConfig{}, nil)

	if _, err := service.IssueToken(&domain.Account{ID: "acc-1"}); err == nil {
		t.Fatal("expected error when jwt secret is not configured")
	}
}
