package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

// TokenRepository implements port.TokenRepository using PostgreSQL.
type TokenRepository struct {
	begin   txBeginner
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	repo := &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if tb, ok := exec.(txBeginner); ok {
		repo.begin = tb
	}
	return repo
}

// CreateVerification stores the token, superseding any earlier token of the
// same purpose for the account so at most one is live at a time.
func (r *TokenRepository) CreateVerification(ctx context.Context, token domain.VerificationToken) error {
	if r.begin == nil {
		return fmt.Errorf("token repository requires a transactional executor")
	}

	tx, err := r.begin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create token tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	delStmt, delArgs, err := r.builder.Delete("identity.verification_tokens").
		Where(squirrel.Eq{"account_id": token.AccountID, "purpose": token.Purpose}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete prior tokens sql: %w", err)
	}
	if _, err := tx.Exec(ctx, delStmt, delArgs...); err != nil {
		return fmt.Errorf("delete prior tokens: %w", err)
	}

	insStmt, insArgs, err := r.builder.Insert("identity.verification_tokens").
		Columns("id", "account_id", "token_hash", "purpose", "created_at", "expires_at").
		Values(token.ID, token.AccountID, token.TokenHash, token.Purpose, token.CreatedAt, token.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token sql: %w", err)
	}
	if _, err := tx.Exec(ctx, insStmt, insArgs...); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create token tx: %w", err)
	}

	return nil
}

// GetVerificationByHash looks up a token record by its stored hash.
func (r *TokenRepository) GetVerificationByHash(ctx context.Context, hash string) (*domain.VerificationToken, error) {
	stmt, args, err := r.builder.
		Select("id", "account_id", "token_hash", "purpose", "created_at", "expires_at").
		From("identity.verification_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	var token domain.VerificationToken
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.Purpose,
		&token.CreatedAt,
		&token.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	return &token, nil
}

// DeleteVerification consumes the token. The delete's row count is the
// single-use arbiter: concurrent consumers race on it and exactly one wins.
func (r *TokenRepository) DeleteVerification(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("identity.verification_tokens").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteVerificationsForAccount removes every token for the account.
func (r *TokenRepository) DeleteVerificationsForAccount(ctx context.Context, accountID string) error {
	stmt, args, err := r.builder.Delete("identity.verification_tokens").
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account tokens sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete account tokens: %w", err)
	}

	return nil
}

// DeleteExpired removes tokens whose expiry is before the reference instant
// and reports how many were swept.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("identity.verification_tokens").
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
