package platform

import (
	"context"

	"github.com/rugguard/rugguard-bot/internal/models"
)

// Client is the narrow surface of the social platform the core depends on.
// All calls are blocking I/O; failures come back as errors, never panics.
type Client interface {
	// GetPost fetches metadata for a post. Returns ErrNotFound (wrapped) if
	// the post is missing, deleted, or inaccessible.
	GetPost(ctx context.Context, postID string) (*models.PostMetadata, error)

	// GetProfile fetches the public profile of an account. Returns
	// ErrNotFound (wrapped) if the account does not exist or is protected.
	GetProfile(ctx context.Context, accountID string) (*models.AccountProfile, error)

	// PublishReply posts text as a reply and returns the new post's ID.
	PublishReply(ctx context.Context, inReplyToPostID, text string) (string, error)
}

// StreamSource produces trigger events pulled from the platform's live
// stream. NextEvent blocks until an event arrives, the context is cancelled,
// or the stream is permanently lost.
type StreamSource interface {
	NextEvent(ctx context.Context) (*models.TriggerEvent, error)
}
