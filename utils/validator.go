// utils/validator.go - Input validation
package utils

import (
	"regexp"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,24}$`)

// ValidateUsername checks an eToro username: 2-25 characters, alphanumeric
// plus dot, dash and underscore, starting with a letter or digit.
func ValidateUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidatePassword checks password strength
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}

	return true, ""
}
