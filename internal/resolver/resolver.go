package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/rugguard/rugguard-bot/internal/platform"
	"github.com/sirupsen/logrus"
)

// ErrNotTrigger marks an event that does not carry the trigger phrase or is
// not a reply. Silently ignored upstream; it is not a failure.
var ErrNotTrigger = errors.New("not a trigger event")

// ResolutionError wraps a failure to reach the original post or its author.
// Permanent: a deleted post will never come back, so it is reported and the
// event dropped, never retried.
type ResolutionError struct {
	PostID string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve author of post %s: %v", e.PostID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver determines which account an event asks the bot to analyze: the
// author of the post being replied to, never the replier.
type Resolver struct {
	client platform.Client
	phrase string
}

// NewResolver creates a resolver matching the given trigger phrase,
// case-insensitively.
func NewResolver(client platform.Client, triggerPhrase string) *Resolver {
	return &Resolver{
		client: client,
		phrase: strings.ToLower(triggerPhrase),
	}
}

// IsTrigger reports whether the event is a reply carrying the trigger
// phrase.
func (r *Resolver) IsTrigger(event *models.TriggerEvent) bool {
	return event.IsReply() && strings.Contains(strings.ToLower(event.RawText), r.phrase)
}

// Resolve returns the account ID of the original post's author. Events that
// are not triggers yield ErrNotTrigger; unreachable posts yield a
// ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, event *models.TriggerEvent) (string, error) {
	if !r.IsTrigger(event) {
		return "", ErrNotTrigger
	}

	post, err := r.client.GetPost(ctx, event.RepliedToPostID)
	if err != nil {
		return "", &ResolutionError{PostID: event.RepliedToPostID, Err: err}
	}

	logrus.Debugf("Event %s targets account %s (author of post %s)",
		event.EventID, post.AuthorID, post.PostID)
	return post.AuthorID, nil
}
