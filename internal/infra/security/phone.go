package security

import (
	"errors"
	"strings"
)

// ErrInvalidPhone indicates the value is not a Bangladesh mobile number.
var ErrInvalidPhone = errors.New("invalid bangladesh mobile number")

// Bangladesh mobile numbers are 11 digits in local form (01XXXXXXXXX) with
// operator prefixes 013-019. Canonical storage form is +8801XXXXXXXXX.
const (
	bdCountryCode   = "+880"
	bdLocalLength   = 11
	bdMobileLeading = "01"
)

// CanonicalPhone normalizes a Bangladesh mobile number to +8801XXXXXXXXX.
// Accepted inputs: 01712345678, 8801712345678, +8801712345678 (spaces and
// hyphens ignored). Landline or unrecognized operator prefixes are rejected.
func CanonicalPhone(input string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	var local string
	switch {
	case strings.HasPrefix(cleaned, bdCountryCode):
		local = "0" + cleaned[len(bdCountryCode):]
	case strings.HasPrefix(cleaned, "880"):
		local = "0" + cleaned[len("880"):]
	default:
		local = cleaned
	}

	if len(local) != bdLocalLength || !strings.HasPrefix(local, bdMobileLeading) {
		return "", ErrInvalidPhone
	}

	for _, r := range local {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}

	// Third digit selects the operator block; 010-012 are not mobile allocations.
	if local[2] < '3' || local[2] > '9' {
		return "", ErrInvalidPhone
	}

	return bdCountryCode + local[1:], nil
}
