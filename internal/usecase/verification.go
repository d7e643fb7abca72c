package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

const (
	// verificationTokenBytes yields a 64-hex-character raw token.
	verificationTokenBytes = 32

	scopeEmailResend = "email-resend"
)

var (
	// ErrTokenInvalid indicates the token is unknown or already consumed.
	ErrTokenInvalid = errors.New("verification token invalid")
	// ErrTokenExpired indicates the token exists but is past its expiry.
	ErrTokenExpired = errors.New("verification token expired")
	// ErrAccountNotFound indicates no account matches the supplied identifier.
	ErrAccountNotFound = errors.New("account not found")
	// ErrChannelAlreadyVerified indicates the contact channel was verified earlier.
	ErrChannelAlreadyVerified = errors.New("channel already verified")
)

// VerificationConfig carries token lifetimes and resend throttling.
type VerificationConfig struct {
	EmailTokenTTL     time.Duration
	ResetTokenTTL     time.Duration
	EmailResendLimit  int
	EmailResendWindow time.Duration
}

// VerificationService issues and consumes email verification tokens and
// drives the account state machine when a channel verifies.
type VerificationService struct {
	accounts  port.AccountRepository
	tokens    port.TokenRepository
	emails    port.EmailSender
	publisher port.EventPublisher
	limiter   *RateLimiter
	cfg       VerificationConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewVerificationService constructs the email verification service.
func NewVerificationService(
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	emails port.EmailSender,
	publisher port.EventPublisher,
	limiter *RateLimiter,
	cfg VerificationConfig,
	log *zap.Logger,
) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.EmailTokenTTL <= 0 {
		cfg.EmailTokenTTL = 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &VerificationService{
		accounts:  accounts,
		tokens:    tokens,
		emails:    emails,
		publisher: publisher,
		limiter:   limiter,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *VerificationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// IssueToken mints a raw token for the purpose, stores only its hash, and
// supersedes any earlier token of the same purpose for the account.
func (s *VerificationService) IssueToken(ctx context.Context, accountID string, purpose domain.TokenPurpose) (string, domain.VerificationToken, error) {
	raw, err := security.GenerateVerificationToken(verificationTokenBytes)
	if err != nil {
		return "", domain.VerificationToken{}, fmt.Errorf("generate verification token: %w", err)
	}

	ttl := s.cfg.EmailTokenTTL
	if purpose == domain.TokenPurposeResetPassword {
		ttl = s.cfg.ResetTokenTTL
	}

	now := s.now().UTC()
	token := domain.VerificationToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.tokens.CreateVerification(ctx, token); err != nil {
		return "", domain.VerificationToken{}, fmt.Errorf("persist verification token: %w", err)
	}

	return raw, token, nil
}

// SendVerificationEmail issues a fresh token and delivers it to the account's
// email address.
func (s *VerificationService) SendVerificationEmail(ctx context.Context, account domain.Account) error {
	if account.Email == nil || *account.Email == "" {
		return fmt.Errorf("account %s has no email", account.ID)
	}

	raw, token, err := s.IssueToken(ctx, account.ID, domain.TokenPurposeVerifyEmail)
	if err != nil {
		return err
	}

	vars := map[string]string{
		"FirstName": account.FirstName,
		"Token":     raw,
		"ExpiresAt": token.ExpiresAt.Format(time.RFC1123),
	}
	if err := s.emails.Send(ctx, *account.Email, "verify_email", vars); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}

	return nil
}

// ConsumeToken resolves the raw token to its record and consumes it. Expired
// tokens are removed on sight; a consumed or unknown token is indistinguishable
// from one that never existed.
func (s *VerificationService) ConsumeToken(ctx context.Context, raw string, purpose domain.TokenPurpose) (*domain.VerificationToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	token, err := s.tokens.GetVerificationByHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("lookup verification token: %w", err)
	}

	if token.Purpose != purpose {
		return nil, ErrTokenInvalid
	}

	if token.Expired(s.now().UTC()) {
		if err := s.tokens.DeleteVerification(ctx, token.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("delete expired token failed", zap.Error(err))
		}
		return nil, ErrTokenExpired
	}

	// The delete is the single-use arbiter under concurrent consumption.
	if err := s.tokens.DeleteVerification(ctx, token.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("consume verification token: %w", err)
	}

	return token, nil
}

// VerifyEmail consumes the token, marks the email channel verified, and
// activates the account when no unverified channel remains. The returned bool
// reports whether activation happened in this call.
func (s *VerificationService) VerifyEmail(ctx context.Context, raw string) (*domain.Account, bool, error) {
	token, err := s.ConsumeToken(ctx, raw, domain.TokenPurposeVerifyEmail)
	if err != nil {
		return nil, false, err
	}

	return markVerifiedAndMaybeActivate(ctx, s.accounts, s.publisher, s.logger, token.AccountID, domain.ChannelEmail, s.now().UTC())
}

// ResendVerificationEmail issues and delivers a fresh token for a pending
// email channel. Unknown addresses are swallowed so the endpoint does not
// leak which emails are registered.
func (s *VerificationService) ResendVerificationEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrTokenInvalid
	}

	if err := s.limiter.Allow(ctx, scopeEmailResend, email, s.cfg.EmailResendLimit, s.cfg.EmailResendWindow); err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("resend requested for unknown email",
				zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("lookup account by email: %w", err)
	}

	if account.EmailVerified {
		return ErrChannelAlreadyVerified
	}

	return s.SendVerificationEmail(ctx, *account)
}

// SweepExpiredTokens removes verification tokens past their expiry and
// reports how many were swept.
func (s *VerificationService) SweepExpiredTokens(ctx context.Context) (int, error) {
	return s.tokens.DeleteExpired(ctx, s.now().UTC())
}

// markVerifiedAndMaybeActivate records the channel verification and promotes
// the account to active once every channel supplied at registration is
// verified. Activation publishing is best-effort.
func markVerifiedAndMaybeActivate(
	ctx context.Context,
	accounts port.AccountRepository,
	publisher port.EventPublisher,
	log *zap.Logger,
	accountID string,
	channel domain.VerificationChannel,
	now time.Time,
) (*domain.Account, bool, error) {
	if err := accounts.MarkChannelVerified(ctx, accountID, channel, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrAccountNotFound
		}
		return nil, false, fmt.Errorf("mark channel verified: %w", err)
	}

	account, err := accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, false, fmt.Errorf("reload account: %w", err)
	}

	if account.Status != domain.AccountStatusPending || !account.FullyVerified() {
		return account, false, nil
	}

	if err := accounts.UpdateStatus(ctx, accountID, domain.AccountStatusActive); err != nil {
		return nil, false, fmt.Errorf("activate account: %w", err)
	}
	account.Status = domain.AccountStatusActive

	if publisher != nil {
		event := domain.AccountActivatedEvent{
			EventID:         uuid.NewString(),
			AccountID:       accountID,
			ActivatedAt:     now,
			VerifiedChannel: string(channel),
		}
		if err := publisher.PublishAccountActivated(ctx, event); err != nil {
			log.Warn("publish account activated failed",
				zap.String("account_id", accountID), zap.Error(err))
		}
	}

	return account, true, nil
}
