// Package results persists completed quiz outcomes, best effort and
// detached from the reply path.
package results

import (
	"context"
	"time"
)

// Outcome is the single record produced by a completed run.
type Outcome struct {
	UserID      int64
	Username    string
	Role        string
	Correct     int
	Errors      int
	CompletedAt time.Time
}

// Sink appends one outcome to the results store.
type Sink interface {
	Record(ctx context.Context, o Outcome) error
}

// NopSink discards outcomes; wired when no results store is configured.
type NopSink struct{}

// Record drops the outcome.
func (NopSink) Record(context.Context, Outcome) error { return nil }
