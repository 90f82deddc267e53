package operator

import (
	"errors"
	"net/http"
)

var (
	// ErrPromptNotFound is returned for responses to prompts that were
	// retired or never issued.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrInvalidAction is returned when the action is not an option of the
	// prompt or not a known command.
	ErrInvalidAction = errors.New("invalid action")
	// ErrUnavailable is returned when no workflow accepts operator input.
	ErrUnavailable = errors.New("operator input unavailable")
)

// MapHTTPStatus maps operator errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPromptNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
