package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/membergate/membergate/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest            = "INVALID_REQUEST"
	CodeNotFound                  = "NOT_FOUND"
	CodeAlreadyExists             = "ALREADY_EXISTS"
	CodeUserSlotTaken             = "USER_SLOT_TAKEN"
	CodeCannotBeNamedAnonymous    = "CANNOT_BE_NAMED_ANONYMOUS"
	CodeUsernameTooShort          = "USERNAME_TOO_SHORT"
	CodeUsernameTooLong           = "USERNAME_TOO_LONG"
	CodeUsernameInvalidCharacters = "USERNAME_INVALID_CHARACTERS"
	CodePasswordTooShort          = "PASSWORD_TOO_SHORT"
	CodePasswordTooLong           = "PASSWORD_TOO_LONG"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeUnauthenticated           = "UNAUTHENTICATED"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeUnknownPermission         = "UNKNOWN_PERMISSION"
	CodeUnimplemented             = "UNIMPLEMENTED"
	CodeInternalError             = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for already-wrapped errors
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Member not found"}}
	case errors.Is(err, model.ErrAlreadyExists):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyExists, "Username already exists"}}
	case errors.Is(err, model.ErrUserSlotTaken):
		return &httpError{http.StatusConflict, APIError{CodeUserSlotTaken, "User slot is already filled"}}
	case errors.Is(err, model.ErrCannotBeNamedAnonymous):
		return &httpError{http.StatusBadRequest, APIError{CodeCannotBeNamedAnonymous, "Username is reserved"}}
	case errors.Is(err, model.ErrUsernameTooShort):
		return &httpError{http.StatusBadRequest, APIError{CodeUsernameTooShort, "Username is too short"}}
	case errors.Is(err, model.ErrUsernameTooLong):
		return &httpError{http.StatusBadRequest, APIError{CodeUsernameTooLong, "Username is too long"}}
	case errors.Is(err, model.ErrUsernameInvalidCharacters):
		return &httpError{http.StatusBadRequest, APIError{CodeUsernameInvalidCharacters, "Username contains invalid characters"}}
	case errors.Is(err, model.ErrPasswordTooShort):
		return &httpError{http.StatusBadRequest, APIError{CodePasswordTooShort, "Password is too short"}}
	case errors.Is(err, model.ErrPasswordTooLong):
		return &httpError{http.StatusBadRequest, APIError{CodePasswordTooLong, "Password is too long"}}
	case errors.Is(err, model.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, model.ErrNoSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthenticated, "Authentication required"}}
	case errors.Is(err, model.ErrUnauthorized):
		return &httpError{http.StatusForbidden, APIError{CodeUnauthorized, "Insufficient permissions"}}
	case errors.Is(err, model.ErrUnknownPermission):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownPermission, "Unknown permission name"}}
	case errors.Is(err, model.ErrUnimplemented):
		return &httpError{http.StatusNotImplemented, APIError{CodeUnimplemented, "Not implemented"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthenticatedError creates an authentication-required error
func NewUnauthenticatedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthenticated, "Authentication required"}}
}

// NewForbiddenError creates an insufficient-permissions error
func NewForbiddenError() error {
	return &httpError{http.StatusForbidden, APIError{CodeUnauthorized, "Insufficient permissions"}}
}

// NewInvalidCredentialsError creates the uniform login failure error. Login
// reports unknown usernames and wrong passwords identically so the endpoint
// does not confirm which usernames exist.
func NewInvalidCredentialsError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
