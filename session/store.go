// Package session keeps per-session conversation history: an append-ordered
// message log per session id that expires a fixed time after its last write.
package session

import (
	"context"
	"time"

	"newsrag/types"
)

const DefaultTTL = 24 * time.Hour

// Store is an ordered, expiring message log per session.
type Store interface {
	// Append adds msg after the existing messages and resets the session's
	// expiry to now+TTL. Both happen in one step.
	Append(ctx context.Context, sessionID string, msg types.Message) error
	// Recent returns the last count messages, oldest first. A count of zero
	// or less returns the whole log. An absent session yields an empty slice.
	Recent(ctx context.Context, sessionID string, count int) ([]types.Message, error)
	// Clear deletes the session. Clearing an absent session succeeds.
	Clear(ctx context.Context, sessionID string) error
}

// Clock returns the current time. Tests swap it to move past expiry.
type Clock func() time.Time

func Key(sessionID string) string {
	return "session:" + sessionID
}
