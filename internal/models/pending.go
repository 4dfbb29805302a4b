package models

import (
	"fmt"
	"time"
)

// ChangeType is the kind of mutation a pending change represents.
type ChangeType string

// Change types.
const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// DefaultMaxRetries is how many failed flush attempts a change survives
// before it is dropped.
const DefaultMaxRetries = 3

// PendingChange is a durable mutation intent waiting to be replayed to the
// remote API. At most one pending change exists per (collection, id) key;
// repeated edits are coalesced into it.
type PendingChange struct {
	ID         string     `json:"id"`
	Collection Collection `json:"collection"`
	Type       ChangeType `json:"type"`
	Data       Patch      `json:"data,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
	TempID     string     `json:"temp_id,omitempty"`
}

// Key returns the coalescing key for the change.
func (c *PendingChange) Key() string {
	return ChangeKey(c.Collection, c.ID)
}

// ChangeKey builds the coalescing key for a (collection, id) pair.
func ChangeKey(collection Collection, id string) string {
	return fmt.Sprintf("%s:%s", collection, id)
}

// SyncStatus is a derived, read-only view of the change queue.
type SyncStatus struct {
	PendingCount  int                `json:"pending_count"`
	IsSyncing     bool               `json:"is_syncing"`
	PerCollection map[Collection]int `json:"per_collection"`
}
