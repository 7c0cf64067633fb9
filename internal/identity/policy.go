package identity

import (
	"fmt"
	"strings"
	"unicode"
)

const minPasswordLength = 8

// commonPasswords is a short denylist of passwords seen constantly in breach
// corpora. Checked case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"passw0rd":   {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"letmein1":   {},
	"iloveyou":   {},
	"admin123":   {},
	"welcome1":   {},
	"sunshine":   {},
	"football":   {},
	"baseball":   {},
}

// ValidatePassword applies the account password policy: minimum length, not
// purely numeric, not a known-common password, not too similar to the
// username. Returns ErrInvalidInput-wrapped errors.
func ValidatePassword(username, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if isNumericOnly(password) {
		return fmt.Errorf("%w: password cannot be entirely numeric", ErrInvalidInput)
	}
	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return fmt.Errorf("%w: password is too common", ErrInvalidInput)
	}
	if name := strings.ToLower(strings.TrimSpace(username)); name != "" {
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			return fmt.Errorf("%w: password is too similar to the username", ErrInvalidInput)
		}
	}
	return nil
}

// ValidateUsername enforces the identifier shape used for logins.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(username) > 150 {
		return fmt.Errorf("%w: username too long", ErrInvalidInput)
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '@', '.', '+', '-', '_':
			continue
		}
		return fmt.Errorf("%w: username may contain letters, digits and @.+-_ only", ErrInvalidInput)
	}
	return nil
}

func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
