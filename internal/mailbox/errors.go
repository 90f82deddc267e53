package mailbox

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound    = errors.New("message not found")
	ErrDuplicate   = errors.New("message already received")
	ErrNoRecipient = errors.New("message needs at least one recipient")
	ErrNoSubject   = errors.New("message needs a subject")
	ErrInvalidFile = errors.New("invalid attachment")
	ErrSendFailed  = errors.New("queue outbound message failed")
)

// MapHTTPStatus maps mailbox errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrNoRecipient), errors.Is(err, ErrNoSubject), errors.Is(err, ErrInvalidFile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
