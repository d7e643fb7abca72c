package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
	"github.com/bazarly/commerce-platform-identity/internal/infra/security"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

// ErrPasswordAlreadyUsed indicates the candidate password matches one of the
// account's previous passwords.
var ErrPasswordAlreadyUsed = errors.New("password was used before")

// PasswordService handles credential changes: authenticated change, and the
// forgot/reset flow driven by emailed single-use tokens.
type PasswordService struct {
	accounts          port.AccountRepository
	verification      *VerificationService
	emails            port.EmailSender
	publisher         port.EventPublisher
	passwordValidator *security.PasswordValidator
	// historyLimit bounds how many prior hashes are compared on reuse
	// checks; zero compares the full history.
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

// NewPasswordService constructs the password service.
func NewPasswordService(
	accounts port.AccountRepository,
	verification *VerificationService,
	emails port.EmailSender,
	publisher port.EventPublisher,
	passwordValidator *security.PasswordValidator,
	historyLimit int,
	log *zap.Logger,
) *PasswordService {
	if passwordValidator == nil {
		passwordValidator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordService{
		accounts:          accounts,
		verification:      verification,
		emails:            emails,
		publisher:         publisher,
		passwordValidator: passwordValidator,
		historyLimit:      historyLimit,
		logger:            log,
		now:               time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ChangePassword rotates the password after verifying the current one.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.passwordValidator.Validate(newPassword, accountUserInputs(account)...); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}
	if newPassword == currentPassword {
		return ErrPasswordAlreadyUsed
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	s.publishChanged(ctx, account.ID, "change")
	return nil
}

// RequestReset starts the forgot-password flow. Unknown identifiers are
// swallowed so the endpoint does not leak which accounts exist; accounts
// without an email address cannot be reset this way and are also swallowed.
func (s *PasswordService) RequestReset(ctx context.Context, identifier string) error {
	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown identifier")
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if account.Email == nil || *account.Email == "" {
		s.logger.Info("password reset requested for account without email",
			zap.String("account_id", account.ID))
		return nil
	}

	raw, token, err := s.verification.IssueToken(ctx, account.ID, domain.TokenPurposeResetPassword)
	if err != nil {
		return err
	}

	vars := map[string]string{
		"Token":     raw,
		"ExpiresAt": token.ExpiresAt.Format(time.RFC1123),
	}
	if err := s.emails.Send(ctx, *account.Email, "reset_password", vars); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	if s.publisher != nil {
		event := domain.PasswordResetRequestedEvent{
			EventID:           uuid.NewString(),
			AccountID:         account.ID,
			RequestedAt:       s.now().UTC(),
			MaskedDestination: logger.MaskEmail(*account.Email),
			ExpiresAt:         token.ExpiresAt,
		}
		if err := s.publisher.PublishPasswordResetRequested(ctx, event); err != nil {
			s.logger.Warn("publish password reset requested failed",
				zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	return nil
}

// ResetPassword consumes the reset token and sets the new password.
func (s *PasswordService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	token, err := s.verification.ConsumeToken(ctx, rawToken, domain.TokenPurposeResetPassword)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.passwordValidator.Validate(newPassword, accountUserInputs(account)...); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	s.publishChanged(ctx, account.ID, "reset")
	return nil
}

// setPassword enforces the reuse policy, persists the new hash, and appends
// it to the history.
func (s *PasswordService) setPassword(ctx context.Context, account *domain.Account, newPassword string) error {
	history, err := s.accounts.ListPasswordHistory(ctx, account.ID, s.historyLimit)
	if err != nil {
		return fmt.Errorf("list password history: %w", err)
	}
	for _, entry := range history {
		match, err := security.VerifyPassword(newPassword, entry.PasswordHash)
		if err != nil {
			continue
		}
		if match {
			return ErrPasswordAlreadyUsed
		}
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, passwordHash, "argon2id", now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	entry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		PasswordHash: passwordHash,
		SetAt:        now,
	}
	if err := s.accounts.AddPasswordHistory(ctx, entry); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	return nil
}

func (s *PasswordService) publishChanged(ctx context.Context, accountID, reason string) {
	if s.publisher == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: accountID,
		ChangedAt: s.now().UTC(),
		Reason:    reason,
	}
	if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}

func accountUserInputs(account *domain.Account) []string {
	inputs := make([]string, 0, 3)
	if account.Email != nil {
		inputs = append(inputs, *account.Email)
	}
	inputs = append(inputs, account.FirstName, account.LastName)
	return inputs
}
