package port

import (
	"context"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	// CreateWithHistory inserts the account row and its first password
	// history entry as a single atomic unit. A unique-constraint violation
	// on email or phone surfaces as *repository.DuplicateError.
	CreateWithHistory(ctx context.Context, account domain.Account, entry domain.PasswordHistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	MarkChannelVerified(ctx context.Context, id string, channel domain.VerificationChannel, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, passwordAlgo string, changedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// Delete removes the account and its dependent rows. Used only as the
	// compensating rollback when verification dispatch fails.
	Delete(ctx context.Context, id string) error
	ListPasswordHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error)
	AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error
}
