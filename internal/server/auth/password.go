package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 10

// PasswordSpecials is the set of characters that satisfy the special
// character rule.
const PasswordSpecials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Hasher produces and verifies bcrypt hashes with a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's range fall back to
// DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// HashPassword salts and hashes plain.
func (h *Hasher) HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches hash.
func (h *Hasher) CheckPassword(hash, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// WeakPasswordMessage is returned to clients whose password fails the policy.
const WeakPasswordMessage = "Password must be at least 8 characters with uppercase, lowercase, number, and special character."

// ValidatePassword returns the rules plain violates, or nil.
func ValidatePassword(plain string) []string {
	var upper, lower, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			upper = true
		case unicode.IsLower(r) && r < unicode.MaxASCII:
			lower = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}

	var violations []string
	if len([]rune(plain)) < 8 {
		violations = append(violations, "at least 8 characters")
	}
	if !upper {
		violations = append(violations, "an uppercase letter")
	}
	if !lower {
		violations = append(violations, "a lowercase letter")
	}
	if !digit {
		violations = append(violations, "a number")
	}
	if !special {
		violations = append(violations, "a special character")
	}
	return violations
}
