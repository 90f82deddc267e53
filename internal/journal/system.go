package journal

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/pkg/pagination"
)

// System defines the public contract for the transition journal.
type System interface {
	Handler() *Handler

	// Append records t. A zero ID is assigned.
	Append(ctx context.Context, t Transition) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Transition], error)

	Find(ctx context.Context, id uuid.UUID) (*Transition, error)
}
