package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

const (
	scopeOTPSend     = "otp-send"
	scopeOTPCooldown = "otp-cooldown"
)

var (
	// ErrOTPNotFound indicates no active code exists for the phone. The
	// caller should request a fresh one rather than retry.
	ErrOTPNotFound = errors.New("otp not found")
	// ErrOTPInvalid indicates the submitted code does not match the active one.
	ErrOTPInvalid = errors.New("otp invalid")
	// ErrOTPExpired indicates the active code is past its expiry.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPMaxAttempts indicates the attempt budget for the active code is
	// spent. The state is sticky until a fresh code is sent.
	ErrOTPMaxAttempts = errors.New("otp max attempts exceeded")
)

// OTPConfig carries code shape, lifetime, and send throttling.
type OTPConfig struct {
	Length         int
	TTL            time.Duration
	MaxAttempts    int
	SendLimit      int
	SendWindow     time.Duration
	ResendCooldown time.Duration
}

// OTPService sends and verifies one-time codes for phone verification.
type OTPService struct {
	accounts  port.AccountRepository
	store     port.OTPStore
	sms       port.SMSSender
	publisher port.EventPublisher
	limiter   *RateLimiter
	cfg       OTPConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewOTPService constructs the phone OTP service.
func NewOTPService(
	accounts port.AccountRepository,
	store port.OTPStore,
	sms port.SMSSender,
	publisher port.EventPublisher,
	limiter *RateLimiter,
	cfg OTPConfig,
	log *zap.Logger,
) *OTPService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &OTPService{
		accounts:  accounts,
		store:     store,
		sms:       sms,
		publisher: publisher,
		limiter:   limiter,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *OTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Send throttles, mints, stores, and delivers a fresh code for the phone.
// The new code supersedes any earlier one and resets its attempt counter.
// Two policies compose: a hard cap on sends per rolling window, and a short
// cool-down between consecutive sends.
func (s *OTPService) Send(ctx context.Context, phone string) error {
	canonical, err := security.CanonicalPhone(phone)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByPhone(ctx, canonical)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account by phone: %w", err)
	}

	if account.PhoneVerified {
		return ErrChannelAlreadyVerified
	}

	if err := s.limiter.Allow(ctx, scopeOTPCooldown, canonical, 1, s.cfg.ResendCooldown); err != nil {
		return err
	}
	if err := s.limiter.Allow(ctx, scopeOTPSend, canonical, s.cfg.SendLimit, s.cfg.SendWindow); err != nil {
		return err
	}

	return s.dispatch(ctx, account, canonical)
}

// SendForAccount delivers the first code during registration, bypassing the
// lookup the public endpoint performs. Throttling still applies so the
// registration send counts against the window.
func (s *OTPService) SendForAccount(ctx context.Context, account domain.Account) error {
	if account.Phone == nil || *account.Phone == "" {
		return fmt.Errorf("account %s has no phone", account.ID)
	}
	canonical := *account.Phone

	if err := s.limiter.Allow(ctx, scopeOTPCooldown, canonical, 1, s.cfg.ResendCooldown); err != nil {
		return err
	}
	if err := s.limiter.Allow(ctx, scopeOTPSend, canonical, s.cfg.SendLimit, s.cfg.SendWindow); err != nil {
		return err
	}

	return s.dispatch(ctx, &account, canonical)
}

func (s *OTPService) dispatch(ctx context.Context, account *domain.Account, phone string) error {
	code, err := security.GenerateNumericCode(s.cfg.Length)
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}

	now := s.now().UTC()
	otp := domain.PhoneOTP{
		Phone:       phone,
		AccountID:   account.ID,
		Code:        code,
		Attempts:    0,
		MaxAttempts: s.cfg.MaxAttempts,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}

	if err := s.store.Store(ctx, otp, s.cfg.TTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.TTL.Minutes()))
	if err := s.sms.Send(ctx, phone, message); err != nil {
		return fmt.Errorf("send otp sms: %w", err)
	}

	s.logger.Info("otp dispatched", zap.String("phone", logger.MaskPhone(phone)))
	return nil
}

// Verify checks the submitted code against the active one for the phone.
// Mismatches burn an attempt; once the budget is spent every further attempt
// fails with ErrOTPMaxAttempts until a fresh code is sent. On success the
// code is deleted, the phone channel is marked verified, and the account is
// activated when no unverified channel remains.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (*domain.Account, bool, error) {
	canonical, err := security.CanonicalPhone(phone)
	if err != nil {
		return nil, false, err
	}

	otp, err := s.store.Fetch(ctx, canonical)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrOTPNotFound
		}
		return nil, false, fmt.Errorf("fetch otp: %w", err)
	}

	now := s.now().UTC()
	if otp.Expired(now) {
		if err := s.store.Delete(ctx, canonical); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("delete expired otp failed", zap.Error(err))
		}
		return nil, false, ErrOTPExpired
	}

	if otp.Exhausted() {
		return nil, false, ErrOTPMaxAttempts
	}

	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		attempts, err := s.store.IncrementAttempts(ctx, canonical)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("increment otp attempts: %w", err)
		}
		if otp.MaxAttempts > 0 && attempts >= otp.MaxAttempts {
			return nil, false, ErrOTPMaxAttempts
		}
		return nil, false, ErrOTPInvalid
	}

	if err := s.store.Delete(ctx, canonical); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("consume otp: %w", err)
	}

	return markVerifiedAndMaybeActivate(ctx, s.accounts, s.publisher, s.logger, otp.AccountID, domain.ChannelPhone, now)
}

// Invalidate drops any active code for the phone. Used by the registration
// rollback path.
func (s *OTPService) Invalidate(ctx context.Context, phone string) error {
	if err := s.store.Delete(ctx, phone); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}
