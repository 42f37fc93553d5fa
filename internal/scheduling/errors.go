package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEventTypes means the account has no bookable event types at all.
	ErrNoEventTypes = errors.New("no event types found for this account")

	// ErrNoMatchingEventType means a scheduling link was configured but no
	// event type's public link equals it.
	ErrNoMatchingEventType = errors.New("no event type matches the configured scheduling link")

	// ErrUpstreamTimeout means an outbound call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream request timed out")
)

// UpstreamError is a non-success response from the scheduling API. The
// upstream body is surfaced verbatim to the caller.
type UpstreamError struct {
	Op     string // "current_user", "event_types", "availability"
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("calendly %s failed with status %d: %s", e.Op, e.Status, e.Body)
}
