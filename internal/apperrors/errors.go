package apperrors

import (
	"errors"
	"net/http"
)

// Error is a well known application error
// Code is stable and machine readable, Message is safe to show to the user
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code string, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

var (
	ErrUserAlreadyExists  = newError("AUTH_USER_ALREADY_EXISTS", "A user with this email already exists", http.StatusConflict)
	ErrInvalidCredentials = newError("AUTH_INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrUserNotFound       = newError("AUTH_USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrUnauthorized       = newError("AUTH_UNAUTHORIZED", "Unauthorized access", http.StatusUnauthorized)
	ErrForbidden          = newError("AUTH_FORBIDDEN", "Forbidden: insufficient permissions", http.StatusForbidden)

	// Access token path
	ErrNoToken      = newError("AUTH_NO_TOKEN", "No authentication token provided", http.StatusUnauthorized)
	ErrInvalidToken = newError("AUTH_INVALID_TOKEN", "Invalid or malformed token", http.StatusUnauthorized)
	ErrTokenExpired = newError("AUTH_TOKEN_EXPIRED", "Token has expired", http.StatusUnauthorized)

	// Refresh token path
	ErrNoRefreshToken      = newError("AUTH_NO_REFRESH_TOKEN", "No refresh token provided", http.StatusUnauthorized)
	ErrInvalidRefreshToken = newError("AUTH_INVALID_REFRESH_TOKEN", "Invalid refresh token", http.StatusUnauthorized)
	ErrRefreshTokenRevoked = newError("AUTH_REFRESH_TOKEN_REVOKED", "Refresh token has been revoked", http.StatusUnauthorized)

	ErrValidation = newError("VALIDATION_ERROR", "Validation error", http.StatusBadRequest)
	ErrDatabase   = newError("DATABASE_ERROR", "Database operation failed", http.StatusInternalServerError)
	ErrInternal   = newError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)

	ErrUnavailable = newError("SERVICE_UNAVAILABLE", "Service is temporarily unavailable", http.StatusServiceUnavailable)
)

// Store level errors. Never rendered to the user as is
var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// As returns the application error wrapped into err
// Any unknown error is reported as ErrInternal so internal details never leak
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}
