package port

import (
	"context"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
)

// TokenRepository manages single-use verification and reset token records.
type TokenRepository interface {
	// CreateVerification stores a new token and removes any prior unconsumed
	// token of the same purpose for the account, so at most one live token
	// exists per purpose per account.
	CreateVerification(ctx context.Context, token domain.VerificationToken) error
	GetVerificationByHash(ctx context.Context, hash string) (*domain.VerificationToken, error)
	// DeleteVerification consumes the token. Returns repository.ErrNotFound
	// if it was already consumed.
	DeleteVerification(ctx context.Context, id string) error
	DeleteVerificationsForAccount(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
