package handler

import (
	"errors"
	"net/http"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
)

const (
	errInternalServer     = "Internal server error"
	errTaskNotFound       = "Task not found"
	errTokenInvalid       = "Token is invalid or expired"
	errInvalidCredentials = "Invalid username or password"
	errTooManyRequests    = "Too many requests, try again later"
	errServiceUnavailable = "Service temporarily unavailable"
	errDeliveryFailed     = "Could not deliver notification"
)

// tokenError reports whether err is one of the token redemption failures. They all
// collapse into one response so callers cannot tell a used token from a forged one.
func tokenError(err error) bool {
	return errors.Is(err, domain.ErrTokenNotFound) ||
		errors.Is(err, domain.ErrTokenExpired) ||
		errors.Is(err, domain.ErrTokenAlreadyUsed) ||
		errors.Is(err, domain.ErrUnknownTokenKind)
}

// statusFor maps domain errors to a status code and public message.
func statusFor(err error) (int, string) {
	switch {
	case tokenError(err):
		return http.StatusUnauthorized, errTokenInvalid
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errInvalidCredentials
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, errTaskNotFound
	case errors.Is(err, domain.ErrTooManyRequests):
		return http.StatusTooManyRequests, errTooManyRequests
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errServiceUnavailable
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway, errDeliveryFailed
	default:
		return http.StatusInternalServerError, errInternalServer
	}
}
