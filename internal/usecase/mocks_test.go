package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

// fakeAccountRepository keeps accounts in memory and records mutating calls.
type fakeAccountRepository struct {
	accounts   map[string]*domain.Account
	history    []domain.PasswordHistoryEntry
	deleted    []string
	lastLogins map[string]time.Time
	createErr  error
}

func newFakeAccountRepository() *fakeAccountRepository {
	return &fakeAccountRepository{
		accounts:   make(map[string]*domain.Account),
		lastLogins: make(map[string]time.Time),
	}
}

func (r *fakeAccountRepository) add(account domain.Account) {
	copied := account
	r.accounts[account.ID] = &copied
}

func (r *fakeAccountRepository) CreateWithHistory(_ context.Context, account domain.Account, entry domain.PasswordHistoryEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.add(account)
	r.history = append(r.history, entry)
	return nil
}

func (r *fakeAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *fakeAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.Email != nil && *account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepository) GetByPhone(_ context.Context, phone string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.Phone != nil && *account.Phone == phone {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	if account, err := r.GetByEmail(ctx, identifier); err == nil {
		return account, nil
	}
	return r.GetByPhone(ctx, identifier)
}

func (r *fakeAccountRepository) MarkChannelVerified(_ context.Context, id string, channel domain.VerificationChannel, _ time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch channel {
	case domain.ChannelEmail:
		account.EmailVerified = true
	case domain.ChannelPhone:
		account.PhoneVerified = true
	}
	return nil
}

func (r *fakeAccountRepository) UpdateStatus(_ context.Context, id string, status domain.AccountStatus) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.Status = status
	return nil
}

func (r *fakeAccountRepository) UpdatePassword(_ context.Context, id string, passwordHash string, passwordAlgo string, _ time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.PasswordAlgo = passwordAlgo
	return nil
}

func (r *fakeAccountRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.lastLogins[id] = at
	return nil
}

func (r *fakeAccountRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeAccountRepository) ListPasswordHistory(_ context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	entries := make([]domain.PasswordHistoryEntry, 0)
	for _, entry := range r.history {
		if entry.AccountID == accountID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SetAt.After(entries[j].SetAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *fakeAccountRepository) AddPasswordHistory(_ context.Context, entry domain.PasswordHistoryEntry) error {
	r.history = append(r.history, entry)
	return nil
}

// fakeTokenRepository keeps verification tokens in memory.
type fakeTokenRepository struct {
	tokens            map[string]domain.VerificationToken
	deletedForAccount []string
	createErr         error
}

func newFakeTokenRepository() *fakeTokenRepository {
	return &fakeTokenRepository{tokens: make(map[string]domain.VerificationToken)}
}

func (r *fakeTokenRepository) CreateVerification(_ context.Context, token domain.VerificationToken) error {
	if r.createErr != nil {
		return r.createErr
	}
	for id, existing := range r.tokens {
		if existing.AccountID == token.AccountID && existing.Purpose == token.Purpose {
			delete(r.tokens, id)
		}
	}
	r.tokens[token.ID] = token
	return nil
}

func (r *fakeTokenRepository) GetVerificationByHash(_ context.Context, hash string) (*domain.VerificationToken, error) {
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			copied := token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepository) DeleteVerification(_ context.Context, id string) error {
	if _, ok := r.tokens[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tokens, id)
	return nil
}

func (r *fakeTokenRepository) DeleteVerificationsForAccount(_ context.Context, accountID string) error {
	r.deletedForAccount = append(r.deletedForAccount, accountID)
	for id, token := range r.tokens {
		if token.AccountID == accountID {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *fakeTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	swept := 0
	for id, token := range r.tokens {
		if token.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			swept++
		}
	}
	return swept, nil
}

// fakeOTPStore keeps the active code per phone in memory.
type fakeOTPStore struct {
	codes map[string]domain.PhoneOTP
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{codes: make(map[string]domain.PhoneOTP)}
}

func (s *fakeOTPStore) Store(_ context.Context, otp domain.PhoneOTP, _ time.Duration) error {
	s.codes[otp.Phone] = otp
	return nil
}

func (s *fakeOTPStore) Fetch(_ context.Context, phone string) (*domain.PhoneOTP, error) {
	otp, ok := s.codes[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := otp
	return &copied, nil
}

func (s *fakeOTPStore) IncrementAttempts(_ context.Context, phone string) (int, error) {
	otp, ok := s.codes[phone]
	if !ok {
		return 0, repository.ErrNotFound
	}
	otp.Attempts++
	s.codes[phone] = otp
	return otp.Attempts, nil
}

func (s *fakeOTPStore) Delete(_ context.Context, phone string) error {
	if _, ok := s.codes[phone]; !ok {
		return repository.ErrNotFound
	}
	delete(s.codes, phone)
	return nil
}

type sentEmail struct {
	to       string
	template string
	vars     map[string]string
}

type fakeEmailSender struct {
	sent []sentEmail
	err  error
}

func (s *fakeEmailSender) Send(_ context.Context, to string, templateID string, vars map[string]string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, template: templateID, vars: vars})
	return nil
}

type sentSMS struct {
	phone   string
	message string
}

type fakeSMSSender struct {
	sent []sentSMS
	err  error
}

func (s *fakeSMSSender) Send(_ context.Context, phone string, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentSMS{phone: phone, message: message})
	return nil
}

// fakeEventPublisher records every published lifecycle event.
type fakeEventPublisher struct {
	registered      []domain.AccountRegisteredEvent
	activated       []domain.AccountActivatedEvent
	passwordChanged []domain.PasswordChangedEvent
	resetRequested  []domain.PasswordResetRequestedEvent
}

func (p *fakeEventPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.registered = append(p.registered, event)
	return nil
}

func (p *fakeEventPublisher) PublishAccountActivated(_ context.Context, event domain.AccountActivatedEvent) error {
	p.activated = append(p.activated, event)
	return nil
}

func (p *fakeEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *fakeEventPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.resetRequested = append(p.resetRequested, event)
	return nil
}

// memoryRateLimitStore implements the sliding-window store over a plain map.
// The mutex mirrors the atomicity the redis script provides.
type memoryRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newMemoryRateLimitStore() *memoryRateLimitStore {
	return &memoryRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *memoryRateLimitStore) ReserveAttempt(_ context.Context, identifier string, limit int, window time.Duration, at time.Time) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := at.Add(-window)
	kept := make([]time.Time, 0, len(s.attempts[identifier]))
	for _, t := range s.attempts[identifier] {
		if !t.Before(threshold) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		s.attempts[identifier] = kept
		oldest := kept[0]
		for _, t := range kept[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		return false, oldest, nil
	}

	s.attempts[identifier] = append(kept, at)
	return true, time.Time{}, nil
}

func (s *memoryRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *memoryRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	count := 0
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (s *memoryRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *memoryRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range s.attempts[identifier] {
		if at.Before(threshold) || at.After(reference) {
			continue
		}
		if !found || at.Before(oldest) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}
