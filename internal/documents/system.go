package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)

	// Store uploads data at key and records it in the catalog. Storing an
	// existing key replaces its content.
	Store(ctx context.Context, key string, data []byte, contentType string) error
	// Read returns the content stored at key.
	Read(ctx context.Context, key string) ([]byte, error)
	// Remove deletes the blob at key and its catalog row. A missing key is
	// not an error.
	Remove(ctx context.Context, key string) error
	// Archive moves every key under the archive prefix and folder. Keys
	// already moved are skipped, so a failed archive can be repeated.
	Archive(ctx context.Context, folder string, keys []string) error
}
