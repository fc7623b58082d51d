package platform

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a post or profile that does not exist or cannot be read
// with the current access tier. Callers match it with errors.Is.
var ErrNotFound = errors.New("not found")

// PublishError wraps a failed reply publication. Permanent for the event
// that produced it; the dispatch loop logs it and moves on.
type PublishError struct {
	InReplyTo string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish reply to post %s: %v", e.InReplyTo, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
