package audit

import (
	"context"
	"time"
)

// Entry is one append-only action record. Entries are never updated or
// deleted; they exist for accountability, not business logic.
type Entry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name,omitempty"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Store persists audit entries. Writes that belong to a state-changing
// transaction are inserted inside that transaction by the owning store;
// this interface covers standalone appends and reads.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
