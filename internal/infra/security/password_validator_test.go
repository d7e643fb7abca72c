package security

import (
	"errors"
	"testing"
)

func TestPasswordValidatorAcceptsStrongPassword(t *testing.T) {
	validator := DefaultPasswordValidator()

	if err := validator.Validate("Tr1cky&Unrelated#Phrase"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestPasswordValidatorMinLength(t *testing.T) {
	validator := DefaultPasswordValidator()

	err := validator.Validate("Ab1!x")
	if err == nil {
		t.Fatal("expected validation error for short password")
	}

	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *PasswordValidationError, got %T", err)
	}
	if verr.Code != "min_length" {
		t.Fatalf("expected code min_length, got %q", verr.Code)
	}
}

func TestPasswordValidatorCharacterClasses(t *testing.T) {
	validator := DefaultPasswordValidator()

	err := validator.Validate("alllowercaseletters")
	if err == nil {
		t.Fatal("expected validation error for single character class")
	}

	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *PasswordValidationError, got %T", err)
	}
	if verr.Code != "character_classes" {
		t.Fatalf("expected code character_classes, got %q", verr.Code)
	}
}

func TestPasswordValidatorStrengthFloor(t *testing.T) {
	validator := NewPasswordValidator(StrengthStrong, MinLengthRule(8), RequireCharacterClassesRule(3))

	err := validator.Validate("Aaaaaa1!")
	if err == nil {
		t.Fatal("expected validation error below strength floor")
	}

	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *PasswordValidationError, got %T", err)
	}
	if verr.Code != "weak_password" {
		t.Fatalf("expected code weak_password, got %q", verr.Code)
	}
}

func TestPasswordValidatorRequireDifferentFrom(t *testing.T) {
	validator := NewPasswordValidator(
		StrengthWeak,
		MinLengthRule(8),
		RequireDifferentFrom("Tr1cky&Unrelated#Phrase"),
	)

	err := validator.Validate("Tr1cky&Unrelated#Phrase")
	if err == nil {
		t.Fatal("expected validation error for reused value")
	}

	var verr *PasswordValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *PasswordValidationError, got %T", err)
	}
	if verr.Code != "different" {
		t.Fatalf("expected code different, got %q", verr.Code)
	}
}

func TestEvaluateOrdersStrengths(t *testing.T) {
	validator := DefaultPasswordValidator()
	weak := validator.Evaluate("abc")
	strong := validator.Evaluate("Tr1cky&Unrelated#Phrase")

	if weak.Strength != StrengthWeak {
		t.Fatalf("expected weak rating, got %s", weak.Strength)
	}
	if strong.Strength != StrengthStrong {
		t.Fatalf("expected strong rating, got %s", strong.Strength)
	}
	if weak.Score >= strong.Score {
		t.Fatalf("expected score ordering, got weak=%d strong=%d", weak.Score, strong.Score)
	}
}
