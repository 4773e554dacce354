package auth

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 11
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

// Password policy violation codes.
const (
	CodeTooShort       = "password_too_short"
	CodeTooLong        = "password_too_long"
	CodeMissingUpper   = "password_missing_uppercase"
	CodeMissingLower   = "password_missing_lowercase"
	CodeMissingSpecial = "password_missing_special"
)

// PasswordPolicyError describes the first rule a password breaks.
type PasswordPolicyError struct {
	Code    string
	Message string
}

func (e *PasswordPolicyError) Error() string {
	return e.Message
}

type passwordRule func(password string) *PasswordPolicyError

// PasswordPolicy validates new passwords against an ordered rule chain.
type PasswordPolicy struct {
	rules []passwordRule
}

// NewPasswordPolicy requires a minimum length, an uppercase letter,
// a lowercase letter and a non-alphanumeric character.
func NewPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{rules: []passwordRule{
		minLength(MinPasswordLength),
		maxBytes(MaxPasswordBytes),
		requireClass(unicode.IsUpper, CodeMissingUpper, "password must contain an uppercase letter"),
		requireClass(unicode.IsLower, CodeMissingLower, "password must contain a lowercase letter"),
		requireClass(isSpecial, CodeMissingSpecial, "password must contain a special character"),
	}}
}

// Validate returns a *PasswordPolicyError for the first violated rule.
func (p *PasswordPolicy) Validate(password string) error {
	for _, rule := range p.rules {
		if err := rule(password); err != nil {
			return err
		}
	}
	return nil
}

func minLength(n int) passwordRule {
	return func(password string) *PasswordPolicyError {
		if utf8.RuneCountInString(password) < n {
			return &PasswordPolicyError{
				Code:    CodeTooShort,
				Message: fmt.Sprintf("password must be at least %d characters", n),
			}
		}
		return nil
	}
}

func maxBytes(n int) passwordRule {
	return func(password string) *PasswordPolicyError {
		if len(password) > n {
			return &PasswordPolicyError{
				Code:    CodeTooLong,
				Message: fmt.Sprintf("password must be at most %d bytes", n),
			}
		}
		return nil
	}
}

func requireClass(match func(rune) bool, code, message string) passwordRule {
	return func(password string) *PasswordPolicyError {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordPolicyError{Code: code, Message: message}
	}
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("unused-placeholder"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether password matches hash. Only malformed hashes produce an error.
func (h *PasswordHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("compare password: %w", err)
}

// CompareDummy spends the same time as Compare against a fixed hash.
// It is used when no account exists for the presented identifier.
func (h *PasswordHasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
