package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInvalidRoom         = errors.New("invalid room specified")
	ErrEmptyMessage        = errors.New("message content is required")
	ErrMessageTooLong      = errors.New("message is too long")
	ErrMessageNotFound     = errors.New("message not found")
	ErrNotMessageOwner     = errors.New("not authorized to modify this message")
	ErrRateLimited         = errors.New("message cooldown active")
	ErrDuplicateSubmission = errors.New("score already submitted for this game")
	ErrInvalidScore        = errors.New("invalid score value")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrMessageNotFound)
}

// IsValidationError reports whether the error should surface as a client
// mistake rather than an infrastructure failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrMessageTooLong) ||
		errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrInvalidRoom) ||
		errors.Is(err, ErrInvalidRequest)
}
