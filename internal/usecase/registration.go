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

var (
	// ErrInvalidInput indicates a required registration field is missing.
	ErrInvalidInput = errors.New("invalid registration input")
	// ErrPasswordMismatch indicates password and its confirmation differ.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrVerificationDispatchFailed indicates the account was created but no
	// verification artifact could be delivered, and the creation was rolled back.
	ErrVerificationDispatchFailed = errors.New("verification dispatch failed")
)

// RegisterInput carries the raw registration request.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// RegistrationResult reports the created account and the channels the caller
// must verify before the account activates.
type RegistrationResult struct {
	Account          domain.Account
	RequiredChannels []domain.VerificationChannel
}

// RegistrationService orchestrates new account onboarding: validation,
// atomic persistence, and verification dispatch for each supplied channel.
type RegistrationService struct {
	accounts          port.AccountRepository
	tokens            port.TokenRepository
	verification      *VerificationService
	otps              *OTPService
	publisher         port.EventPublisher
	emailValidator    *security.EmailValidator
	passwordValidator *security.PasswordValidator
	logger            *zap.Logger
	now               func() time.Time
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	verification *VerificationService,
	otps *OTPService,
	publisher port.EventPublisher,
	emailValidator *security.EmailValidator,
	passwordValidator *security.PasswordValidator,
	log *zap.Logger,
) *RegistrationService {
	if emailValidator == nil {
		emailValidator = security.NewEmailValidator(nil)
	}
	if passwordValidator == nil {
		passwordValidator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		accounts:          accounts,
		tokens:            tokens,
		verification:      verification,
		otps:              otps,
		publisher:         publisher,
		emailValidator:    emailValidator,
		passwordValidator: passwordValidator,
		logger:            log,
		now:               time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register validates the input, creates the pending account with its first
// password history entry, and dispatches one verification artifact per
// supplied channel. If any dispatch fails the account creation is rolled
// back so the identifiers stay free for a retry.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegistrationResult, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" {
		return nil, fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	if lastName == "" {
		return nil, fmt.Errorf("%w: last name is required", ErrInvalidInput)
	}

	rawEmail := strings.TrimSpace(input.Email)
	rawPhone := strings.TrimSpace(input.Phone)
	if rawEmail == "" && rawPhone == "" {
		return nil, fmt.Errorf("%w: email or phone is required", ErrInvalidInput)
	}

	var email, phone string
	if rawEmail != "" {
		normalized, err := s.emailValidator.Validate(rawEmail)
		if err != nil {
			return nil, err
		}
		email = normalized
	}
	if rawPhone != "" {
		canonical, err := security.CanonicalPhone(rawPhone)
		if err != nil {
			return nil, err
		}
		phone = canonical
	}

	password := input.Password
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if input.ConfirmPassword != password {
		return nil, ErrPasswordMismatch
	}
	if err := s.passwordValidator.Validate(password, email, firstName, lastName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	// Pre-checks give fast conflict answers; the store's unique constraints
	// remain the arbiter under races.
	if email != "" {
		if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
			return nil, &repository.DuplicateError{Field: "email"}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check email uniqueness: %w", err)
		}
	}
	if phone != "" {
		if _, err := s.accounts.GetByPhone(ctx, phone); err == nil {
			return nil, &repository.DuplicateError{Field: "phone"}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check phone uniqueness: %w", err)
		}
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:           uuid.NewString(),
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		PasswordAlgo: "argon2id",
		Status:       domain.AccountStatusPending,
		CreatedAt:    now,
	}
	if email != "" {
		account.Email = &email
	}
	if phone != "" {
		account.Phone = &phone
	}

	historyEntry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		PasswordHash: passwordHash,
		SetAt:        now,
	}

	if err := s.accounts.CreateWithHistory(ctx, account, historyEntry); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, dup
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.dispatchVerification(ctx, account); err != nil {
		s.rollback(ctx, account)
		return nil, fmt.Errorf("%w: %v", ErrVerificationDispatchFailed, err)
	}

	if s.publisher != nil {
		channels := make([]string, 0, 2)
		for _, ch := range account.RequiredChannels() {
			channels = append(channels, string(ch))
		}
		event := domain.AccountRegisteredEvent{
			EventID:          uuid.NewString(),
			AccountID:        account.ID,
			Email:            account.Email,
			Phone:            account.Phone,
			Status:           string(account.Status),
			RegisteredAt:     now,
			RequiredChannels: channels,
		}
		if err := s.publisher.PublishAccountRegistered(ctx, event); err != nil {
			s.logger.Warn("publish account registered failed",
				zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("phone", logger.MaskPhone(phone)),
	)

	return &RegistrationResult{
		Account:          account,
		RequiredChannels: account.RequiredChannels(),
	}, nil
}

// dispatchVerification delivers one artifact per supplied channel. Failure of
// either delivery aborts the registration.
func (s *RegistrationService) dispatchVerification(ctx context.Context, account domain.Account) error {
	if account.Email != nil && *account.Email != "" {
		if err := s.verification.SendVerificationEmail(ctx, account); err != nil {
			return err
		}
	}
	if account.Phone != nil && *account.Phone != "" {
		if err := s.otps.SendForAccount(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

// rollback undoes a registration whose verification dispatch failed. Each
// step is best-effort; a partial rollback is logged loudly since it leaves
// an unverifiable pending account behind.
func (s *RegistrationService) rollback(ctx context.Context, account domain.Account) {
	if err := s.tokens.DeleteVerificationsForAccount(ctx, account.ID); err != nil {
		s.logger.Error("rollback: delete verification tokens failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
	if account.Phone != nil && *account.Phone != "" {
		if err := s.otps.Invalidate(ctx, *account.Phone); err != nil {
			s.logger.Error("rollback: invalidate otp failed",
				zap.String("account_id", account.ID), zap.Error(err))
		}
	}
	if err := s.accounts.Delete(ctx, account.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("rollback: delete account failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}
