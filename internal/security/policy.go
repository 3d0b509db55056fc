package security

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password does not meet the strength policy")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an address. Stored emails are always
// normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// PasswordPolicy checks new passwords. The strict variant scores five
// checks (minimum length, upper case, lower case, digit, symbol) and needs
// at least three.
type PasswordPolicy struct {
	Strict bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("%w: at most %d bytes allowed", ErrWeakPassword, MaxPasswordBytes)
	}
	if !p.Strict {
		return nil
	}
	if passwordClasses(password) < 3 {
		return fmt.Errorf("%w: mix upper and lower case letters, digits and symbols", ErrWeakPassword)
	}
	return nil
}

func passwordClasses(password string) int {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	n := 0
	for _, ok := range []bool{upper, lower, digit, symbol, len([]rune(password)) >= MinPasswordLength} {
		if ok {
			n++
		}
	}
	return n
}
