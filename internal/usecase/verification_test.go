package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
)

type verificationFixture struct {
	accounts  *fakeAccountRepository
	tokens    *fakeTokenRepository
	emails    *fakeEmailSender
	publisher *fakeEventPublisher
	service   *VerificationService
	now       time.Time
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()

	f := &verificationFixture{
		accounts:  newFakeAccountRepository(),
		tokens:    newFakeTokenRepository(),
		emails:    &fakeEmailSender{},
		publisher: &fakeEventPublisher{},
		now:       time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	f.service = NewVerificationService(
		f.accounts, f.tokens, f.emails, f.publisher, nil,
		VerificationConfig{EmailTokenTTL: 24 * time.Hour, ResetTokenTTL: time.Hour},
		nil,
	)
	f.service.WithClock(func() time.Time { return f.now })
	return f
}

func (f *verificationFixture) addPendingAccount(email, phone string) domain.Account {
	account := domain.Account{
		ID:        "acc-1",
		FirstName: "Rahim",
		LastName:  "Uddin",
		Status:    domain.AccountStatusPending,
		CreatedAt: f.now,
	}
	if email != "" {
		account.Email = &email
	}
	if phone != "" {
		account.Phone = &phone
	}
	f.accounts.add(account)
	return account
}

func (f *verificationFixture) sentToken(t *testing.T) string {
	t.Helper()
	if len(f.emails.sent) == 0 {
		t.Fatal("no email was sent")
	}
	raw := f.emails.sent[len(f.emails.sent)-1].vars["Token"]
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex character token, got %q", raw)
	}
	return raw
}

func TestVerifyEmailActivatesSingleChannelAccount(t *testing.T) {
	f := newVerificationFixture(t)
	account := f.addPendingAccount("buyer@example.com", "")

	if err := f.service.SendVerificationEmail(context.Background(), account); err != nil {
		t.Fatalf("SendVerificationEmail returned error: %v", err)
	}
	if f.emails.sent[0].template != "verify_email" {
		t.Fatalf("expected verify_email template, got %s", f.emails.sent[0].template)
	}

	verified, activated, err := f.service.VerifyEmail(context.Background(), f.sentToken(t))
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !activated {
		t.Fatal("expected activation when the only channel verifies")
	}
	if verified.Status != domain.AccountStatusActive {
		t.Fatalf("expected active status, got %s", verified.Status)
	}
	if !verified.EmailVerified {
		t.Fatal("expected email_verified to be set")
	}

	if len(f.publisher.activated) != 1 {
		t.Fatalf("expected 1 activation event, got %d", len(f.publisher.activated))
	}
	if f.publisher.activated[0].VerifiedChannel != "email" {
		t.Fatalf("expected email as verified channel, got %s", f.publisher.activated[0].VerifiedChannel)
	}
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	f := newVerificationFixture(t)
	account := f.addPendingAccount("buyer@example.com", "")

	if err := f.service.SendVerificationEmail(context.Background(), account); err != nil {
		t.Fatalf("SendVerificationEmail returned error: %v", err)
	}
	raw := f.sentToken(t)

	if _, _, err := f.service.VerifyEmail(context.Background(), raw); err != nil {
		t.Fatalf("first VerifyEmail returned error: %v", err)
	}
	if _, _, err := f.service.VerifyEmail(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on replay, got %v", err)
	}
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newVerificationFixture(t)
	account := f.addPendingAccount("buyer@example.com", "")

	if err := f.service.SendVerificationEmail(context.Background(), account); err != nil {
		t.Fatalf("SendVerificationEmail returned error: %v", err)
	}
	raw := f.sentToken(t)

	f.now = f.now.Add(25 * time.Hour)
	if _, _, err := f.service.VerifyEmail(context.Background(), raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// Expired tokens are removed on sight, so a retry sees an unknown token.
	if _, _, err := f.service.VerifyEmail(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after removal, got %v", err)
	}
}

func TestVerifyEmailRejectsGarbage(t *testing.T) {
	f := newVerificationFixture(t)

	if _, _, err := f.service.VerifyEmail(context.Background(), ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for blank token, got %v", err)
	}
	if _, _, err := f.service.VerifyEmail(context.Background(), "deadbeef"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for unknown token, got %v", err)
	}
}

func TestVerifyEmailRejectsTokenOfOtherPurpose(t *testing.T) {
	f := newVerificationFixture(t)
	f.addPendingAccount("buyer@example.com", "")

	raw, _, err := f.service.IssueToken(context.Background(), "acc-1", domain.TokenPurposeResetPassword)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	if _, _, err := f.service.VerifyEmail(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for reset token, got %v", err)
	}
}

func TestVerifyEmailDualChannelStaysPending(t *testing.T) {
	f := newVerificationFixture(t)
	account := f.addPendingAccount("buyer@example.com", "+8801712345678")

	if err := f.service.SendVerificationEmail(context.Background(), account); err != nil {
		t.Fatalf("SendVerificationEmail returned error: %v", err)
	}

	verified, activated, err := f.service.VerifyEmail(context.Background(), f.sentToken(t))
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if activated {
		t.Fatal("expected no activation while phone is unverified")
	}
	if verified.Status != domain.AccountStatusPending {
		t.Fatalf("expected pending status, got %s", verified.Status)
	}
	if len(f.publisher.activated) != 0 {
		t.Fatalf("expected no activation event, got %d", len(f.publisher.activated))
	}
}

func TestIssueTokenSupersedesPrior(t *testing.T) {
	f := newVerificationFixture(t)
	account := f.addPendingAccount("buyer@example.com", "")

	if err := f.service.SendVerificationEmail(context.Background(), account); err != nil {
		t.Fatalf("first send returned error: %v", err)
	}
	first := f.sentToken(t)

	if err := f.service.SendVerificationEmail(context.Background(), account); err != nil {
		t.Fatalf("second send returned error: %v", err)
	}
	second := f.sentToken(t)

	if _, _, err := f.service.VerifyEmail(context.Background(), first); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected superseded token to be invalid, got %v", err)
	}
	if _, _, err := f.service.VerifyEmail(context.Background(), second); err != nil {
		t.Fatalf("expected newest token to verify, got %v", err)
	}
}

func TestResendVerificationEmail(t *testing.T) {
	f := newVerificationFixture(t)
	f.addPendingAccount("buyer@example.com", "")

	if err := f.service.ResendVerificationEmail(context.Background(), "Buyer@Example.com"); err != nil {
		t.Fatalf("ResendVerificationEmail returned error: %v", err)
	}
	if len(f.emails.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(f.emails.sent))
	}
}

func TestResendVerificationEmailSwallowsUnknownAddress(t *testing.T) {
	f := newVerificationFixture(t)

	if err := f.service.ResendVerificationEmail(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("expected unknown address to be swallowed, got %v", err)
	}
	if len(f.emails.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(f.emails.sent))
	}
}

func TestResendVerificationEmailAlreadyVerified(t *testing.T) {
	f := newVerificationFixture(t)
	email := "buyer@example.com"
	f.accounts.add(domain.Account{
		ID:            "acc-1",
		Email:         &email,
		Status:        domain.AccountStatusActive,
		EmailVerified: true,
	})

	if err := f.service.ResendVerificationEmail(context.Background(), email); !errors.Is(err, ErrChannelAlreadyVerified) {
		t.Fatalf("expected ErrChannelAlreadyVerified, got %v", err)
	}
}

func TestResendVerificationEmailThrottled(t *testing.T) {
	f := newVerificationFixture(t)
	f.addPendingAccount("buyer@example.com", "")

	limiter := NewRateLimiter(newMemoryRateLimitStore())
	limiter.WithClock(func() time.Time { return f.now })
	f.service = NewVerificationService(
		f.accounts, f.tokens, f.emails, f.publisher, limiter,
		VerificationConfig{EmailResendLimit: 1, EmailResendWindow: time.Minute},
		nil,
	)
	f.service.WithClock(func() time.Time { return f.now })

	if err := f.service.ResendVerificationEmail(context.Background(), "buyer@example.com"); err != nil {
		t.Fatalf("first resend returned error: %v", err)
	}

	err := f.service.ResendVerificationEmail(context.Background(), "buyer@example.com")
	var limitErr *RateLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RateLimitExceededError, got %v", err)
	}
}

func TestSweepExpiredTokens(t *testing.T) {
	f := newVerificationFixture(t)
	f.addPendingAccount("buyer@example.com", "")

	if _, _, err := f.service.IssueToken(context.Background(), "acc-1", domain.TokenPurposeVerifyEmail); err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}
	if _, _, err := f.service.IssueToken(context.Background(), "acc-1", domain.TokenPurposeResetPassword); err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	f.now = f.now.Add(48 * time.Hour)
	swept, err := f.service.SweepExpiredTokens(context.Background())
	if err != nil {
		t.Fatalf("SweepExpiredTokens returned error: %v", err)
	}
	if swept != 2 {
		t.Fatalf("expected 2 swept tokens, got %d", swept)
	}
}
