package authclient

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes exposed on structured errors so callers can branch on failure
// modes without matching message strings.
const (
	TextCodeInvalidSession      = "INVALID_SESSION"
	TextCodeUnauthorized        = "UNAUTHORIZED_REQUEST"
	TextCodeUnexpectedArguments = "UNEXPECTED_ARGUMENTS"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeClientConflict      = "CLIENT_ALREADY_REGISTERED"
	TextCodeClientNotFound      = "CLIENT_NOT_FOUND"
	TextCodeServiceError        = "SERVICE_ERROR"
)

// ErrInvalidSession is returned when an operation targets a user whose
// session the backend or the local state no longer considers valid.
var ErrInvalidSession = goerrors.New("session is no longer valid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorized is returned when an operation requires an active logged-in
// user and there is none.
var ErrUnauthorized = goerrors.New("must be logged in to perform this action", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnexpectedArguments is returned when an operation that applies only to
// the implicit active user is invoked with an explicit user id.
var ErrUnexpectedArguments = goerrors.New("operation received unexpected arguments", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnexpectedArguments).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is returned when a user id is not present in the known
// users table.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// IsInvalidSessionError reports whether err carries the invalid session text
// code, either directly or wrapped.
func IsInvalidSessionError(err error) bool {
	return hasTextCode(err, TextCodeInvalidSession)
}

// IsUnauthorizedError reports whether err indicates a missing active user.
func IsUnauthorizedError(err error) bool {
	return hasTextCode(err, TextCodeUnauthorized)
}

// IsUserNotFoundError reports whether err indicates an unknown user id.
func IsUserNotFoundError(err error) bool {
	return hasTextCode(err, TextCodeUserNotFound)
}

// IsServiceError reports whether err is a backend-reported failure that was
// not classified as an invalid session.
func IsServiceError(err error) bool {
	return hasTextCode(err, TextCodeServiceError)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}
