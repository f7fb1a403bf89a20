package session

import "context"

// Store is the durable owner of sessions across events. Implementations
// must return a fresh initial session for unknown users rather than an
// error, so first contact needs no separate creation step.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Put(ctx context.Context, userID int64, s Session) error
}
