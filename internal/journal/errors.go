package journal

import (
	"errors"
	"net/http"
)

// Domain errors for journal operations.
var (
	ErrNotFound  = errors.New("transition not found")
	ErrDuplicate = errors.New("transition already recorded")
)

// MapHTTPStatus maps journal errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
