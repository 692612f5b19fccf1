package model

import "strings"

// Username and password constraints
const (
	UsernameMinLength = 3
	UsernameMaxLength = 32
	PasswordMinLength = 5
	PasswordMaxLength = 1024

	// UsernameAlphabet is the full set of characters allowed in usernames.
	UsernameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// ValidateUsername checks the username constraints for account creation.
// The anonymous name is reserved in every casing.
func ValidateUsername(username string) error {
	if CanonicalUsername(username) == AnonymousUsername {
		return ErrCannotBeNamedAnonymous
	}
	if len(username) < UsernameMinLength {
		return ErrUsernameTooShort
	}
	if len(username) > UsernameMaxLength {
		return ErrUsernameTooLong
	}
	for _, r := range username {
		if !strings.ContainsRune(UsernameAlphabet, r) {
			return ErrUsernameInvalidCharacters
		}
	}
	return nil
}

// ValidatePassword checks the password length constraints.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return ErrPasswordTooShort
	}
	if len(password) > PasswordMaxLength {
		return ErrPasswordTooLong
	}
	return nil
}
