// Package cache is the facade the rest of the application talks to: it
// holds the authoritative in-memory copy of each collection, serves
// stale-while-revalidate reads, applies optimistic mutations immediately,
// and hands durable mutation intent to the change queue.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/asteroid-belt/skillsync/internal/log"
	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/notify"
	"github.com/asteroid-belt/skillsync/internal/store"
	"github.com/asteroid-belt/skillsync/internal/syncq"
	"github.com/asteroid-belt/skillsync/internal/telemetry"
)

// DefaultTTL is how long a fetched collection counts as fresh.
const DefaultTTL = 5 * time.Minute

// Backend is the slice of the API client the cache needs. Satisfied by
// *api.Client.
type Backend interface {
	List(ctx context.Context, collection models.Collection) (json.RawMessage, error)
	Create(ctx context.Context, collection models.Collection, body, dest any) error
	Delete(ctx context.Context, collection models.Collection, id string) error
}

// Config holds cache tuning knobs.
type Config struct {
	TTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TTL: DefaultTTL}
}

// decodeFunc turns a raw collection listing into entities.
type decodeFunc func(raw json.RawMessage) ([]models.Entity, error)

// collectionState is one collection's share of the cache.
type collectionState struct {
	records     []models.Entity
	lastFetched time.Time
}

// Cache orchestrates reads and writes for all collections. Safe for
// concurrent use.
type Cache struct {
	backend  Backend
	store    *store.Store
	queue    *syncq.Queue
	notifier *notify.Notifier
	tc       telemetry.Client
	ttl      time.Duration
	now      func() time.Time

	mu          sync.Mutex
	collections map[models.Collection]*collectionState
}

// Stats is an aggregate view over the cache and queue.
type Stats struct {
	Records     map[models.Collection]int       `json:"records"`
	LastFetched map[models.Collection]time.Time `json:"last_fetched"`
	Pending     models.SyncStatus               `json:"pending"`
	StoreBytes  int64                           `json:"store_bytes"`
}

// New creates a cache, warm-loading collection snapshots persisted by a
// previous session so reads work before the first network round-trip.
func New(cfg Config, backend Backend, st *store.Store, queue *syncq.Queue, notifier *notify.Notifier, tc telemetry.Client) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if tc == nil {
		tc = telemetry.New()
	}

	c := &Cache{
		backend:     backend,
		store:       st,
		queue:       queue,
		notifier:    notifier,
		tc:          tc,
		ttl:         cfg.TTL,
		now:         time.Now,
		collections: make(map[models.Collection]*collectionState),
	}
	for _, collection := range models.ValidCollections() {
		c.collections[collection] = &collectionState{}
	}
	c.warmLoad()
	return c
}

// warmLoad restores persisted snapshots along with their fetch times, so
// freshness carries across sessions: a snapshot still within its TTL serves
// without a refresh, anything older serves stale and revalidates.
func (c *Cache) warmLoad() {
	var skills []models.Skill
	if c.store.Load(store.CacheKey(models.CollectionSkills.String()), &skills) {
		c.collections[models.CollectionSkills].records = skillEntities(skills)
	}
	var projects []models.Project
	if c.store.Load(store.CacheKey(models.CollectionProjects.String()), &projects) {
		c.collections[models.CollectionProjects].records = projectEntities(projects)
	}
	var resources []models.Resource
	if c.store.Load(store.CacheKey(models.CollectionResources.String()), &resources) {
		c.collections[models.CollectionResources].records = resourceEntities(resources)
	}

	var meta map[models.Collection]time.Time
	if c.store.Load(store.KeyCacheMeta, &meta) {
		for collection, st := range c.collections {
			if len(st.records) > 0 {
				st.lastFetched = meta[collection]
			}
		}
	}
}

// fetch implements the stale-while-revalidate read path.
func (c *Cache) fetch(ctx context.Context, collection models.Collection, force bool, decode decodeFunc) ([]models.Entity, error) {
	c.mu.Lock()
	st := c.collections[collection]
	fresh := !st.lastFetched.IsZero() && c.now().Sub(st.lastFetched) < c.ttl
	empty := len(st.records) == 0 && st.lastFetched.IsZero()

	if !empty && !force {
		cached := cloneEntities(st.records)
		c.mu.Unlock()
		if !fresh {
			// Serve stale data now, refresh behind the reader's back.
			go func() {
				if _, err := c.refresh(context.Background(), collection, decode, true); err != nil {
					log.Errorf("cache: background refresh %s: %v", collection, err)
				}
			}()
		}
		return cached, nil
	}
	c.mu.Unlock()

	return c.refresh(ctx, collection, decode, false)
}

// refresh fetches a collection from the backend and overwrites the cached
// copy. Concurrent refreshes are not deduplicated; whichever response
// lands last wins, which never corrupts state because the overwrite is
// wholesale.
func (c *Cache) refresh(ctx context.Context, collection models.Collection, decode decodeFunc, background bool) ([]models.Entity, error) {
	raw, err := c.backend.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", collection, err)
	}
	ents, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", collection, err)
	}

	c.mu.Lock()
	st := c.collections[collection]
	st.records = ents
	st.lastFetched = c.now()
	c.persistLocked(collection)
	c.persistMetaLocked()
	cached := cloneEntities(st.records)
	c.mu.Unlock()

	c.tc.TrackCacheRefreshed(collection.String(), len(ents), background)
	return cached, nil
}

// create posts a record to the backend, waits for the server-assigned id,
// and inserts the server's copy at the head of the collection. Creates are
// never queued: the assigned id matters immediately.
func (c *Cache) create(ctx context.Context, collection models.Collection, body any, dest models.Entity) error {
	if err := c.backend.Create(ctx, collection, body, dest); err != nil {
		if c.notifier != nil {
			c.notifier.Errorf("Could not create %s: it was not saved", collection)
		}
		return err
	}

	c.mu.Lock()
	st := c.collections[collection]
	st.records = append([]models.Entity{dest.CloneEntity()}, st.records...)
	c.persistLocked(collection)
	c.mu.Unlock()
	return nil
}

// update applies an optimistic mutation to the cached record and hands the
// durable intent to the change queue. With immediate set, the queue flushes
// now and the outcome of this change's own send is returned; otherwise
// failures surface only through background notifications.
func (c *Cache) update(ctx context.Context, collection models.Collection, id string, patch models.Patch, immediate bool) error {
	c.mu.Lock()
	st := c.collections[collection]
	idx := indexOfEntity(st.records, id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("update %s: no cached record %q", collection, id)
	}
	// Patch a clone first: a rejected patch must not half-apply.
	patched := st.records[idx].CloneEntity()
	if err := patched.ApplyPatch(patch); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	patched.Touch(c.now())
	st.records[idx] = patched
	c.persistLocked(collection)
	c.mu.Unlock()

	if immediate {
		return c.queue.QueueImmediate(ctx, collection, id, models.ChangeUpdate, patch)
	}
	c.queue.QueueChange(collection, id, models.ChangeUpdate, patch)
	return nil
}

// delete removes the record locally first, then awaits the backend so an
// item displayed as gone is never resurrected by a queued replay. The
// remote error propagates; local state keeps the record gone either way.
func (c *Cache) delete(ctx context.Context, collection models.Collection, id string) error {
	c.mu.Lock()
	st := c.collections[collection]
	st.records = removeEntity(st.records, id)
	c.persistLocked(collection)
	c.mu.Unlock()

	if err := c.backend.Delete(ctx, collection, id); err != nil {
		if c.notifier != nil {
			c.notifier.Errorf("Could not delete from %s: the server still has it", collection)
		}
		return err
	}
	return nil
}

// Unsynced reports whether a record has local edits not yet confirmed by
// the backend, so callers can distinguish speculative from confirmed state.
func (c *Cache) Unsynced(collection models.Collection, id string) bool {
	_, ok := c.queue.Pending(collection, id)
	return ok
}

// Stats returns aggregate statistics over the cache and queue.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	stats := Stats{
		Records:     make(map[models.Collection]int),
		LastFetched: make(map[models.Collection]time.Time),
	}
	for collection, st := range c.collections {
		stats.Records[collection] = len(st.records)
		stats.LastFetched[collection] = st.lastFetched
	}
	c.mu.Unlock()

	stats.Pending = c.queue.Status()
	stats.StoreBytes = c.store.SizeBytes()
	return stats
}

// persistLocked snapshots one collection to the store. Called with c.mu
// held; persistence is best-effort.
func (c *Cache) persistLocked(collection models.Collection) {
	st := c.collections[collection]
	c.store.Save(store.CacheKey(collection.String()), st.records)
}

// persistMetaLocked snapshots every collection's fetch time. Called with
// c.mu held.
func (c *Cache) persistMetaLocked() {
	meta := make(map[models.Collection]time.Time, len(c.collections))
	for collection, st := range c.collections {
		meta[collection] = st.lastFetched
	}
	c.store.Save(store.KeyCacheMeta, meta)
}

// indexOfEntity returns the position of the entity with the given id, or -1.
func indexOfEntity(records []models.Entity, id string) int {
	for i, e := range records {
		if e.EntityID() == id {
			return i
		}
	}
	return -1
}

// removeEntity drops the entity with the given id, preserving order.
func removeEntity(records []models.Entity, id string) []models.Entity {
	out := records[:0]
	for _, e := range records {
		if e.EntityID() != id {
			out = append(out, e)
		}
	}
	return out
}

// cloneEntities deep-copies a record slice so callers can never mutate the
// authoritative copy directly.
func cloneEntities(records []models.Entity) []models.Entity {
	out := make([]models.Entity, len(records))
	for i, e := range records {
		out[i] = e.CloneEntity()
	}
	return out
}
