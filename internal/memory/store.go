package memory

import "context"

// Store is the pluggable backing for session memory. Implementations
// must treat conversations as values: Get returns a copy that only
// becomes visible to other readers after Put.
type Store interface {
	// Get returns the conversation for id, or nil if none exists.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Put stores the conversation under id, resetting its idle timer.
	Put(ctx context.Context, id string, conv *Conversation) error

	// Evict removes the conversation for id. Unknown ids are a no-op.
	Evict(ctx context.Context, id string) error
}
