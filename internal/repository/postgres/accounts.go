package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

const (
	uniqueViolationCode     = "23505"
	accountsEmailConstraint = "accounts_email_key"
	accountsPhoneConstraint = "accounts_phone_key"
)

var accountColumns = []string{
	"id",
	"first_name",
	"last_name",
	"email",
	"phone",
	"password_hash",
	"password_algo",
	"status",
	"email_verified",
	"phone_verified",
	"created_at",
	"last_login_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	begin   txBeginner
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if tb, ok := exec.(txBeginner); ok {
		repo.begin = tb
	}
	return repo
}

// withTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) withTx(tx pgx.Tx) *AccountRepository {
	return &AccountRepository{
		begin:   r.begin,
		exec:    tx,
		builder: r.builder,
	}
}

// CreateWithHistory inserts the account and its first password history entry
// in one transaction. The store's unique constraints are the arbiter under
// concurrent duplicate registrations: a 23505 on email or phone is mapped to
// *repository.DuplicateError naming the losing field.
func (r *AccountRepository) CreateWithHistory(ctx context.Context, account domain.Account, entry domain.PasswordHistoryEntry) error {
	if r.begin == nil {
		return fmt.Errorf("account repository requires a transactional executor")
	}

	tx, err := r.begin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create account tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := r.withTx(tx)
	if err := txRepo.insertAccount(ctx, account); err != nil {
		return err
	}
	if err := txRepo.AddPasswordHistory(ctx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapUniqueViolation(fmt.Errorf("commit create account tx: %w", err))
	}

	return nil
}

func (r *AccountRepository) insertAccount(ctx context.Context, account domain.Account) error {
	query := r.builder.Insert("identity.accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.FirstName,
			account.LastName,
			nullableString(account.Email),
			nullableString(account.Phone),
			account.PasswordHash,
			account.PasswordAlgo,
			account.Status,
			account.EmailVerified,
			account.PhoneVerified,
			account.CreatedAt,
			account.LastLoginAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapUniqueViolation(fmt.Errorf("insert account: %w", err))
	}

	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}

	switch pgErr.ConstraintName {
	case accountsEmailConstraint:
		return &repository.DuplicateError{Field: "email"}
	case accountsPhoneConstraint:
		return &repository.DuplicateError{Field: "phone"}
	default:
		return &repository.DuplicateError{Field: "account"}
	}
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"email": email})
}

// GetByPhone retrieves an account by canonical phone.
func (r *AccountRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"phone": phone})
}

// GetByIdentifier retrieves an account by email or phone.
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Or{
		squirrel.Eq{"email": identifier},
		squirrel.Eq{"phone": identifier},
	})
}

func (r *AccountRepository) getBy(ctx context.Context, pred any) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("identity.accounts").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		email       sql.NullString
		phone       sql.NullString
		lastLoginAt *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.FirstName,
		&account.LastName,
		&email,
		&phone,
		&account.PasswordHash,
		&account.PasswordAlgo,
		&account.Status,
		&account.EmailVerified,
		&account.PhoneVerified,
		&account.CreatedAt,
		&lastLoginAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if email.Valid {
		val := email.String
		account.Email = &val
	}
	if phone.Valid {
		val := phone.String
		account.Phone = &val
	}
	account.LastLoginAt = lastLoginAt

	return &account, nil
}

// MarkChannelVerified sets the verified flag for the given channel.
func (r *AccountRepository) MarkChannelVerified(ctx context.Context, id string, channel domain.VerificationChannel, at time.Time) error {
	var column string
	switch channel {
	case domain.ChannelEmail:
		column = "email_verified"
	case domain.ChannelPhone:
		column = "phone_verified"
	default:
		return fmt.Errorf("unknown verification channel %q", channel)
	}

	stmt, args, err := r.builder.Update("identity.accounts").
		Set(column, true).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark channel verified sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark channel verified: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateStatus updates the status field for an account.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	stmt, args, err := r.builder.Update("identity.accounts").
		Set("status", status).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword updates an account's password hash, algorithm, and change timestamp.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, passwordAlgo string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("identity.accounts").
		Set("password_hash", passwordHash).
		Set("password_algo", passwordAlgo).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateLastLogin records the most recent successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("identity.accounts").
		Set("last_login_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	return nil
}

// Delete removes the account and dependent rows. Compensating rollback only;
// normal lifecycle never hard-deletes accounts.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if r.begin == nil {
		return fmt.Errorf("account repository requires a transactional executor")
	}

	tx, err := r.begin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete account tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, table := range []string{"identity.password_history", "identity.verification_tokens"} {
		stmt, args, err := r.builder.Delete(table).
			Where(squirrel.Eq{"account_id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s sql: %w", table, err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}

	stmt, args, err := r.builder.Delete("identity.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	ct, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete account tx: %w", err)
	}

	return nil
}

// ListPasswordHistory retrieves the most recent password hashes for an account.
func (r *AccountRepository) ListPasswordHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	trimmedID := strings.TrimSpace(accountID)
	if trimmedID == "" {
		return nil, fmt.Errorf("account id is required")
	}

	builder := r.builder.Select("id", "account_id", "password_hash", "set_at").
		From("identity.password_history").
		Where(squirrel.Eq{"account_id": trimmedID}).
		OrderBy("set_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.PasswordHistoryEntry, 0)
	for rows.Next() {
		var record domain.PasswordHistoryEntry
		if err := rows.Scan(&record.ID, &record.AccountID, &record.PasswordHash, &record.SetAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		history = append(history, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return history, nil
}

// AddPasswordHistory appends a password hash to the history table.
func (r *AccountRepository) AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error {
	accountID := strings.TrimSpace(entry.AccountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(entry.PasswordHash) == "" {
		return fmt.Errorf("password hash is required")
	}

	setAt := entry.SetAt
	if setAt.IsZero() {
		setAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.Insert("identity.password_history").
		Columns("id", "account_id", "password_hash", "set_at").
		Values(entry.ID, accountID, entry.PasswordHash, setAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	return nil
}

func nullableString(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

var _ port.AccountRepository = (*AccountRepository)(nil)
