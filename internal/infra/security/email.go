package security

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	// ErrInvalidEmail indicates the address is not well-formed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrDisposableEmail indicates the address uses a throwaway domain.
	ErrDisposableEmail = errors.New("disposable email domain rejected")
)

// defaultDisposableDomains is the built-in denylist; deployments extend it via
// configuration.
var defaultDisposableDomains = map[string]struct{}{
	"mailinator.com":     {},
	"guerrillamail.com":  {},
	"10minutemail.com":   {},
	"tempmail.com":       {},
	"temp-mail.org":      {},
	"throwawaymail.com":  {},
	"yopmail.com":        {},
	"sharklasers.com":    {},
	"getnada.com":        {},
	"trashmail.com":      {},
	"fakeinbox.com":      {},
	"maildrop.cc":        {},
	"dispostable.com":    {},
	"mintemail.com":      {},
	"mytemp.email":       {},
	"spamgourmet.com":    {},
	"mohmal.com":         {},
	"emailondeck.com":    {},
	"tempinbox.com":      {},
	"burnermail.io":      {},
}

// EmailValidator checks address shape and rejects disposable domains.
type EmailValidator struct {
	disposable map[string]struct{}
}

// NewEmailValidator builds a validator combining the built-in denylist with
// extra domains from configuration.
func NewEmailValidator(extraDisposable []string) *EmailValidator {
	domains := make(map[string]struct{}, len(defaultDisposableDomains)+len(extraDisposable))
	for d := range defaultDisposableDomains {
		domains[d] = struct{}{}
	}
	for _, d := range extraDisposable {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains[d] = struct{}{}
		}
	}
	return &EmailValidator{disposable: domains}
}

// Validate returns the normalized (lowercased) address or a typed error.
func (v *EmailValidator) Validate(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", ErrInvalidEmail
	}

	normalized := strings.ToLower(addr.Address)
	at := strings.LastIndex(normalized, "@")
	if at < 0 {
		return "", ErrInvalidEmail
	}

	if _, blocked := v.disposable[normalized[at+1:]]; blocked {
		return "", ErrDisposableEmail
	}

	return normalized, nil
}
