package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordStrength buckets the composite score into client-facing classes.
type PasswordStrength string

const (
	StrengthWeak   PasswordStrength = "weak"
	StrengthFair   PasswordStrength = "fair"
	StrengthGood   PasswordStrength = "good"
	StrengthStrong PasswordStrength = "strong"
)

// rank orders strengths for minimum-strength comparisons.
func (s PasswordStrength) rank() int {
	switch s {
	case StrengthWeak:
		return 0
	case StrengthFair:
		return 1
	case StrengthGood:
		return 2
	case StrengthStrong:
		return 3
	}
	return -1
}

// AtLeast reports whether s meets or exceeds the minimum strength.
func (s PasswordStrength) AtLeast(min PasswordStrength) bool {
	return s.rank() >= min.rank()
}

// StrengthReport is the outcome of scoring a candidate password.
type StrengthReport struct {
	Score      int
	Strength   PasswordStrength
	Violations []string
}

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator scores passwords and applies a sequence of hard rules.
type PasswordValidator struct {
	rules       []PasswordRule
	minStrength PasswordStrength
}

// NewPasswordValidator constructs a validator with the provided minimum
// strength and hard rules.
func NewPasswordValidator(minStrength PasswordStrength, rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied, minStrength: minStrength}
}

// DefaultPasswordValidator returns the validator used for registration:
// minimum 8 characters, at least 3 character classes, strength good or above.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		StrengthGood,
		MinLengthRule(8),
		RequireCharacterClassesRule(3),
	)
}

// Evaluate computes the composite score and collects every violation. The
// score blends length, character-class diversity, and zxcvbn's dictionary
// estimate; strength is the bucketed classification of the score.
func (v *PasswordValidator) Evaluate(password string, userInputs ...string) StrengthReport {
	report := StrengthReport{}

	length := len([]rune(password))
	switch {
	case length >= 16:
		report.Score += 40
	case length >= 12:
		report.Score += 30
	case length >= 8:
		report.Score += 20
	case length >= 6:
		report.Score += 10
	}

	report.Score += 10 * characterClasses(password)
	if report.Score > 70 {
		report.Score = 70
	}

	// zxcvbn scores 0-4; dictionary hits and common patterns pull it down.
	dict := zxcvbn.PasswordStrength(password, userInputs)
	report.Score += dict.Score * 10
	if report.Score > 100 {
		report.Score = 100
	}

	switch {
	case report.Score < 40:
		report.Strength = StrengthWeak
	case report.Score < 60:
		report.Strength = StrengthFair
	case report.Score < 80:
		report.Strength = StrengthGood
	default:
		report.Strength = StrengthStrong
	}

	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			report.Violations = append(report.Violations, err.Error())
		}
	}

	return report
}

// Validate returns an error when the password violates any hard rule or
// scores below the configured minimum strength.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}

	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}

	report := v.Evaluate(password, userInputs...)
	if !report.Strength.AtLeast(v.minStrength) {
		return &PasswordValidationError{
			Code:    "weak_password",
			Message: fmt.Sprintf("password strength %s is below required %s", report.Strength, v.minStrength),
		}
	}

	return nil
}

func characterClasses(password string) int {
	var (
		hasUpper  bool
		hasLower  bool
		hasDigit  bool
		hasSymbol bool
	)

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			hasSymbol = true
		}
	}

	classes := 0
	if hasUpper {
		classes++
	}
	if hasLower {
		classes++
	}
	if hasDigit {
		classes++
	}
	if hasSymbol {
		classes++
	}
	return classes
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireCharacterClassesRule ensures the password contains characters from at
// least min distinct classes (upper, lower, digit, symbol).
func RequireCharacterClassesRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if min <= 0 {
			return nil
		}
		if characterClasses(password) >= min {
			return nil
		}
		return &PasswordValidationError{
			Code:    "character_classes",
			Message: fmt.Sprintf("password must include at least %d character types", min),
		}
	})
}

// RequireDifferentFrom ensures the new password differs from the provided comparator.
func RequireDifferentFrom(comparator string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if password == comparator {
			return &PasswordValidationError{
				Code:    "different",
				Message: "new password must be different from current password",
			}
		}
		return nil
	})
}
