package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

func newTokenMock(t *testing.T) (pgxmock.PgxPoolIface, *TokenRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewTokenRepository(mock)
}

func TestTokenRepository_CreateVerification_SupersedesPrior(t *testing.T) {
	mock, repo := newTokenMock(t)

	created := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	token := domain.VerificationToken{
		ID:        "tok-1",
		AccountID: "acc-1",
		TokenHash: "hash-1",
		Purpose:   domain.TokenPurposeVerifyEmail,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM identity\.verification_tokens WHERE account_id = \$1 AND purpose = \$2`).
		WithArgs("acc-1", domain.TokenPurposeVerifyEmail).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO identity\.verification_tokens`).
		WithArgs("tok-1", "acc-1", "hash-1", domain.TokenPurposeVerifyEmail, created, created.Add(24*time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.CreateVerification(context.Background(), token); err != nil {
		t.Fatalf("CreateVerification returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetVerificationByHash(t *testing.T) {
	mock, repo := newTokenMock(t)

	created := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "account_id", "token_hash", "purpose", "created_at", "expires_at"}).
		AddRow("tok-1", "acc-1", "hash-1", domain.TokenPurposeResetPassword, created, created.Add(time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM identity\.verification_tokens WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(rows)

	token, err := repo.GetVerificationByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("GetVerificationByHash returned error: %v", err)
	}
	if token.Purpose != domain.TokenPurposeResetPassword {
		t.Fatalf("expected reset purpose, got %s", token.Purpose)
	}
	if token.AccountID != "acc-1" {
		t.Fatalf("expected account acc-1, got %s", token.AccountID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetVerificationByHash_NotFound(t *testing.T) {
	mock, repo := newTokenMock(t)

	mock.ExpectQuery(`SELECT .+ FROM identity\.verification_tokens WHERE token_hash = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetVerificationByHash(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_DeleteVerification_SingleUse(t *testing.T) {
	mock, repo := newTokenMock(t)

	mock.ExpectExec(`DELETE FROM identity\.verification_tokens WHERE id = \$1`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM identity\.verification_tokens WHERE id = \$1`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.DeleteVerification(context.Background(), "tok-1"); err != nil {
		t.Fatalf("first DeleteVerification returned error: %v", err)
	}
	if err := repo.DeleteVerification(context.Background(), "tok-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	mock, repo := newTokenMock(t)

	before := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM identity\.verification_tokens WHERE expires_at < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	count, err := repo.DeleteExpired(context.Background(), before)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 swept tokens, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
