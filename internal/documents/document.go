// Package documents catalogs the blobs a workflow cycle produces: the source
// timesheet, accepted replies and invoices, and the merged artifact. Each
// blob has a catalog row keyed by its storage key; archiving moves both.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Document is a catalogued blob with its metadata.
type Document struct {
	ID          uuid.UUID `json:"id"`
	CycleID     string    `json:"cycle_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
