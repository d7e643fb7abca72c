package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/repository"
)

const (
	defaultOTPPrefix = "otp"

	fieldCode        = "code"
	fieldAccountID   = "account_id"
	fieldAttempts    = "attempts"
	fieldMaxAttempts = "max_attempts"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
)

// OTPStore persists the active one-time code per phone in Redis hashes.
// Storing a new code overwrites the prior hash, so a fresh send supersedes
// the old code and resets its attempt counter.
type OTPStore struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewOTPStore constructs an OTP store with the provided Redis client and key prefix.
func NewOTPStore(client *red.Client, keyPrefix string) *OTPStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}

	return &OTPStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Store persists the OTP with the supplied TTL, replacing any prior entry for
// the phone.
func (r *OTPStore) Store(ctx context.Context, otp domain.PhoneOTP, ttl time.Duration) error {
	switch {
	case strings.TrimSpace(otp.Phone) == "":
		return errors.New("phone is required")
	case strings.TrimSpace(otp.Code) == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := r.key(otp.Phone)

	createdAt := otp.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	expiresAt := otp.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(ttl)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:        otp.Code,
		fieldAccountID:   otp.AccountID,
		fieldAttempts:    strconv.Itoa(otp.Attempts),
		fieldMaxAttempts: strconv.Itoa(otp.MaxAttempts),
		fieldCreatedAt:   strconv.FormatInt(createdAt.Unix(), 10),
		fieldExpiresAt:   strconv.FormatInt(expiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store otp: %w", err)
	}

	return nil
}

// Fetch retrieves the active OTP for the phone.
func (r *OTPStore) Fetch(ctx context.Context, phone string) (*domain.PhoneOTP, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.New("phone is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(phone)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall otp: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := parseIntField(values[fieldAttempts])
	maxAttempts := parseIntField(values[fieldMaxAttempts])

	return &domain.PhoneOTP{
		Phone:       phone,
		AccountID:   values[fieldAccountID],
		Code:        code,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// IncrementAttempts atomically bumps the attempt counter for the phone's OTP
// and returns the new value.
func (r *OTPStore) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	if _, err := r.Fetch(ctx, phone); err != nil {
		return 0, err
	}

	count, err := r.client.HIncrBy(ctx, r.key(strings.TrimSpace(phone)), fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby otp attempts: %w", err)
	}

	return int(count), nil
}

// Delete removes the OTP entry, enforcing single-use semantics.
func (r *OTPStore) Delete(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.New("phone is required")
	}

	deleted, err := r.client.Del(ctx, r.key(phone)).Result()
	if err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (r *OTPStore) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *OTPStore) key(phone string) string {
	return fmt.Sprintf("%s:%s", r.prefix, phone)
}

func parseIntField(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.OTPStore = (*OTPStore)(nil)
