package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories aggregates the PostgreSQL-backed stores.
type Repositories struct {
	Accounts *AccountRepository
	Tokens   *TokenRepository
}

// NewRepositories wires all repositories on a shared pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Accounts: NewAccountRepository(pool),
		Tokens:   NewTokenRepository(pool),
	}
}
