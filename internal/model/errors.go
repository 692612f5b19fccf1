package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrNotFound                  = errors.New("not found")
	ErrAlreadyExists             = errors.New("already exists")
	ErrUserSlotTaken             = errors.New("user slot is already filled")
	ErrCannotBeNamedAnonymous    = errors.New("username is reserved for anonymous sessions")
	ErrUsernameTooShort          = errors.New("username is too short")
	ErrUsernameTooLong           = errors.New("username is too long")
	ErrUsernameInvalidCharacters = errors.New("username contains invalid characters")
	ErrPasswordTooShort          = errors.New("password is too short")
	ErrPasswordTooLong           = errors.New("password is too long")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no valid session")

	// Authorization errors
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnknownPermission = errors.New("unknown permission name")
	ErrUnimplemented     = errors.New("unimplemented")
)
