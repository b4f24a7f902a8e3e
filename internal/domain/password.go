package domain

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	// maxPasswordLength bounds hashing cost on attacker-supplied input and
	// matches the 72-byte bcrypt input limit, so any password that passes the
	// policy is guaranteed to hash.
	maxPasswordLength = 72
)

// commonPasswords is a small denylist of patterns seen in credential dumps.
var commonPasswords = []string{"password", "qwerty", "123456", "letmein", "welcome1"}

// CheckStrength evaluates the password policy and returns every violated rule.
// It is a pure function so callers can surface all reasons at once.
func CheckStrength(password string) []string {
	var reasons []string
	if len(password) < minPasswordLength {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		reasons = append(reasons, fmt.Sprintf("must be at most %d characters", maxPasswordLength))
	}

	var hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "must include an uppercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must include a digit")
	}
	if !hasSymbol {
		reasons = append(reasons, "must include a symbol")
	}

	lowered := strings.ToLower(password)
	for _, banned := range commonPasswords {
		if strings.Contains(lowered, banned) {
			reasons = append(reasons, "includes a commonly used weak pattern")
			break
		}
	}
	return reasons
}

// ValidatePassword enforces the baseline password policy as an error kind.
func ValidatePassword(password string) error {
	if reasons := CheckStrength(password); len(reasons) > 0 {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, "; "))
	}
	return nil
}
