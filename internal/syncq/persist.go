package syncq

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/store"
)

// keyedChange is one persisted queue entry, stored as a [key, change] tuple
// so the on-disk shape mirrors the in-memory map.
type keyedChange struct {
	Key    string
	Change *models.PendingChange
}

// MarshalJSON encodes the entry as a two-element array.
func (k keyedChange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{k.Key, k.Change})
}

// UnmarshalJSON decodes the two-element array form.
func (k *keyedChange) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &k.Key); err != nil {
		return fmt.Errorf("tuple key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &k.Change); err != nil {
		return fmt.Errorf("tuple change: %w", err)
	}
	return nil
}

// persistLocked writes the pending map to the store. Called with q.mu held.
// Persistence is best-effort; the store swallows failures.
func (q *Queue) persistLocked() {
	entries := make([]keyedChange, 0, len(q.pending))
	for key, c := range q.pending {
		entries = append(entries, keyedChange{Key: key, Change: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	q.store.Save(store.KeyPendingChanges, entries)
}

// restore rebuilds the pending map from a previous session and arms a
// debounce for every restored key so the backlog flushes shortly after
// startup.
func (q *Queue) restore() {
	var entries []keyedChange
	if !q.store.Load(store.KeyPendingChanges, &entries) {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entries {
		if e.Change == nil || e.Change.ID == "" {
			continue
		}
		if _, err := models.ParseCollection(e.Change.Collection.String()); err != nil {
			// A collection this build no longer knows about.
			continue
		}
		q.pending[e.Key] = e.Change
		q.armTimerLocked(e.Key)
	}
}
