package ports

import "context"

// EventPublisher notifies other platform services about auth lifecycle events.
// Publish failures must never fail the request that triggered them.
type EventPublisher interface {
	PublishLogin(ctx context.Context, wallet string) error
	PublishLogout(ctx context.Context, wallet string) error
}
