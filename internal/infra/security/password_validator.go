package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// StrengthLabel buckets the password strength score.
type StrengthLabel string

const (
	StrengthWeak       StrengthLabel = "weak"
	StrengthMedium     StrengthLabel = "medium"
	StrengthStrong     StrengthLabel = "strong"
	StrengthVeryStrong StrengthLabel = "very_strong"
)

const minPasswordLength = 8

// PasswordViolation identifies a single policy violation.
type PasswordViolation struct {
	Code    string
	Message string
}

// PasswordStrength summarizes the policy check for a candidate password.
// IsValid is true iff no violations were found. EntropyScore carries the
// advisory zxcvbn score (0-4) and does not affect validity or Label.
type PasswordStrength struct {
	IsValid      bool
	Violations   []PasswordViolation
	Label        StrengthLabel
	EntropyScore int
}

// ScorePasswordStrength checks the five policy rules (minimum length 8 plus
// the four character classes) and computes the strength label from a 7-point
// score: one point each for length >=8, >=12, >=16 and each class present.
func ScorePasswordStrength(password string, userInputs ...string) PasswordStrength {
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

	length := len([]rune(password))

	var violations []PasswordViolation
	if length < minPasswordLength {
		violations = append(violations, PasswordViolation{
			Code:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", minPasswordLength),
		})
	}
	if !hasUpper {
		violations = append(violations, PasswordViolation{Code: "uppercase", Message: "password must include an uppercase letter"})
	}
	if !hasLower {
		violations = append(violations, PasswordViolation{Code: "lowercase", Message: "password must include a lowercase letter"})
	}
	if !hasDigit {
		violations = append(violations, PasswordViolation{Code: "digit", Message: "password must include a digit"})
	}
	if !hasSymbol {
		violations = append(violations, PasswordViolation{Code: "special", Message: "password must include a special character"})
	}

	score := 0
	if length >= minPasswordLength {
		score++
	}
	if length >= 12 {
		score++
	}
	if length >= 16 {
		score++
	}
	for _, present := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if present {
			score++
		}
	}

	var label StrengthLabel
	switch {
	case score <= 2:
		label = StrengthWeak
	case score <= 4:
		label = StrengthMedium
	case score <= 5:
		label = StrengthStrong
	default:
		label = StrengthVeryStrong
	}

	return PasswordStrength{
		IsValid:      len(violations) == 0,
		Violations:   violations,
		Label:        label,
		EntropyScore: zxcvbn.PasswordStrength(password, userInputs).Score,
	}
}
