package auth

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

const (
	MaxUsernameLen = 30
	MaxTitleLen    = 200
	MaxContentLen  = 5000
	MaxOwnerLen    = 50
	MaxQueryLen    = 100
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func ValidUsername(s string) bool { return usernameRe.MatchString(s) }

func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// CheckPasswordPolicy turns ValidatePassword's violations into a ValidationError.
func CheckPasswordPolicy(plain string) error {
	v := ValidatePassword(plain)
	if len(v) == 0 {
		return nil
	}
	return common.NewValidationError(WeakPasswordMessage + " Missing: " + strings.Join(v, ", ") + ".")
}

// ValidRole reports whether role is one of the two known roles.
func ValidRole(role string) bool {
	return role == common.RoleAdmin || role == common.RoleUser
}
