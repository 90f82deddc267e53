package coordinator

import "errors"

var (
	// ErrStaleEvent marks an event with no transition from the current state.
	ErrStaleEvent = errors.New("stale event")
	// ErrDuplicate marks a requirement satisfaction that was already recorded.
	ErrDuplicate = errors.New("duplicate requirement")
	// ErrValidation marks operator input that was rejected.
	ErrValidation = errors.New("validation failed")
	// ErrTransient marks a collaborator failure surfaced to the operator.
	ErrTransient = errors.New("collaborator failure")
)

// Discarded reports whether err means the event was dropped without effect.
func Discarded(err error) bool {
	return errors.Is(err, ErrStaleEvent) || errors.Is(err, ErrDuplicate)
}
