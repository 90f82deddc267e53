package documents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/tally/pkg/storage"
)

// Domain errors for document operations.
var (
	ErrNotFound   = errors.New("document not found")
	ErrDuplicate  = errors.New("document already exists")
	ErrInvalidKey = errors.New("invalid document key")
	ErrArchive    = errors.New("archive failed")
)

// MapHTTPStatus maps document domain errors to HTTP status codes. Blob
// errors from the content route fall through to the storage mapping.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidKey) {
		return http.StatusBadRequest
	}
	return storage.MapHTTPStatus(err)
}
