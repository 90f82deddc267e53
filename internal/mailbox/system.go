package mailbox

import (
	"context"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/pagination"
)

// Attachments stores inbound attachment content. The document catalog
// satisfies it.
type Attachments interface {
	Store(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// System defines the public contract for the mailbox.
type System interface {
	Handler(maxUpload int64) *Handler

	// Send queues msg for the relay and returns its thread.
	Send(ctx context.Context, msg Outbound) (string, error)

	Outbox(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[OutboundMessage], error)

	FindOutbound(ctx context.Context, id string) (*OutboundMessage, error)

	// MarkSent records relay delivery. Repeated calls keep the first time.
	MarkSent(ctx context.Context, id string) (*OutboundMessage, error)

	// Attachment returns the content of an outbound attachment by index.
	Attachment(ctx context.Context, id string, index int) (*events.Attachment, []byte, error)

	// Receive stores msg and its files for delivery.
	Receive(ctx context.Context, msg events.Message, files []File) (*InboundMessage, error)

	Inbox(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[InboundMessage], error)

	// Pending returns up to limit received messages not yet delivered,
	// oldest first.
	Pending(ctx context.Context, limit int) ([]events.Message, error)

	MarkDelivered(ctx context.Context, id string) error
}
