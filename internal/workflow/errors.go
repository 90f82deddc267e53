// Package workflow assembles the final cycle artifact. A four-node state
// graph fetches the parts, renders non-PDF parts to PDF pages, merges them
// in request order and stores the result.
package workflow

import "errors"

// Sentinel errors for workflow operations.
var (
	ErrInvalidRequest = errors.New("invalid assembly request")
	ErrFetchFailed    = errors.New("failed to fetch document parts")
	ErrRenderFailed   = errors.New("failed to render document part")
	ErrMergeFailed    = errors.New("failed to merge documents")
	ErrStoreFailed    = errors.New("failed to store merged document")
)
