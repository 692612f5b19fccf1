package handler

import (
	"net/http"

	"github.com/membergate/membergate/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// Re-export error codes
const (
	CodeInvalidRequest            = apierr.CodeInvalidRequest
	CodeNotFound                  = apierr.CodeNotFound
	CodeAlreadyExists             = apierr.CodeAlreadyExists
	CodeUserSlotTaken             = apierr.CodeUserSlotTaken
	CodeCannotBeNamedAnonymous    = apierr.CodeCannotBeNamedAnonymous
	CodeUsernameTooShort          = apierr.CodeUsernameTooShort
	CodeUsernameTooLong           = apierr.CodeUsernameTooLong
	CodeUsernameInvalidCharacters = apierr.CodeUsernameInvalidCharacters
	CodePasswordTooShort          = apierr.CodePasswordTooShort
	CodePasswordTooLong           = apierr.CodePasswordTooLong
	CodeInvalidCredentials        = apierr.CodeInvalidCredentials
	CodeUnauthenticated           = apierr.CodeUnauthenticated
	CodeUnauthorized              = apierr.CodeUnauthorized
	CodeUnknownPermission         = apierr.CodeUnknownPermission
	CodeUnimplemented             = apierr.CodeUnimplemented
	CodeInternalError             = apierr.CodeInternalError
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewForbiddenError creates an insufficient-permissions error
func NewForbiddenError() error {
	return apierr.NewForbiddenError()
}
