// Package syncq implements the change queue: durable mutation intents keyed
// by (collection, id), coalesced across repeated edits, debounced, batched,
// and replayed to the remote API with bounded retries.
package syncq

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/asteroid-belt/skillsync/internal/api"
	"github.com/asteroid-belt/skillsync/internal/log"
	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/notify"
	"github.com/asteroid-belt/skillsync/internal/store"
	"github.com/asteroid-belt/skillsync/internal/telemetry"
)

// Defaults.
const (
	DefaultDebounce  = 2 * time.Second
	DefaultSettle    = 100 * time.Millisecond
	DefaultBatchSize = 20

	// maxRetryDelay caps the rescheduling backoff.
	maxRetryDelay = 30 * time.Second
)

// SyncFunc sends one batch of coalesced changes for a single collection to
// the remote API. An error fails the whole batch.
type SyncFunc func(ctx context.Context, collection models.Collection, changes []models.PendingChange) error

// Config holds queue tuning knobs.
type Config struct {
	Debounce   time.Duration // per-key quiet period before a change is flush-eligible
	Settle     time.Duration // groups near-simultaneous debounce expirations into one flush
	BatchSize  int           // max changes per remote call
	MaxRetries int           // failed flush attempts before a change is dropped

	// Online reports current connectivity. While it returns false, flush
	// passes are skipped entirely so queued changes keep their retry
	// budget for when the network returns. Nil means always online.
	Online func() bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:   DefaultDebounce,
		Settle:     DefaultSettle,
		BatchSize:  DefaultBatchSize,
		MaxRetries: models.DefaultMaxRetries,
	}
}

// Queue holds pending changes and drives their replay. Construct one per
// engine instance; there is deliberately no package-level singleton so tests
// and embedders get isolated queues.
type Queue struct {
	cfg      Config
	store    *store.Store
	notifier *notify.Notifier
	tc       telemetry.Client
	syncFn   SyncFunc

	mu        sync.Mutex
	pending   map[string]*models.PendingChange
	timers    map[string]*time.Timer
	settle    *time.Timer
	retry     *time.Timer
	flushing  bool
	closed    bool
	failures  map[string]error // per-key errors of the latest flush pass
	listeners map[int]func(models.SyncStatus)
	nextID    int
	now       func() time.Time
}

// New creates a queue, restoring any changes persisted by a previous
// session. Restored changes are armed with a fresh debounce so they flush
// shortly after startup.
func New(cfg Config, st *store.Store, notifier *notify.Notifier, tc telemetry.Client, syncFn SyncFunc) *Queue {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = models.DefaultMaxRetries
	}
	if tc == nil {
		tc = telemetry.New()
	}

	q := &Queue{
		cfg:       cfg,
		store:     st,
		notifier:  notifier,
		tc:        tc,
		syncFn:    syncFn,
		pending:   make(map[string]*models.PendingChange),
		timers:    make(map[string]*time.Timer),
		listeners: make(map[int]func(models.SyncStatus)),
		now:       time.Now,
	}
	q.restore()
	return q
}

// QueueChange records a mutation intent, coalescing it with any pending
// change for the same key, and (re)starts that key's debounce timer.
func (q *Queue) QueueChange(collection models.Collection, id string, changeType models.ChangeType, data models.Patch) {
	q.enqueue(collection, id, changeType, data, true)
	q.notifyListeners()
}

// QueueImmediate records a mutation intent and flushes right away,
// bypassing the debounce. The returned error reflects this change's own
// batch only; a failure of some unrelated pending change in the same pass
// does not leak to the caller.
func (q *Queue) QueueImmediate(ctx context.Context, collection models.Collection, id string, changeType models.ChangeType, data models.Patch) error {
	q.enqueue(collection, id, changeType, data, false)
	q.notifyListeners()
	if err := q.Flush(ctx); err != nil {
		q.mu.Lock()
		kerr := q.failures[models.ChangeKey(collection, id)]
		q.mu.Unlock()
		return kerr
	}
	return nil
}

// enqueue coalesces one incoming change under the lock.
func (q *Queue) enqueue(collection models.Collection, id string, changeType models.ChangeType, data models.Patch, debounce bool) {
	incoming := models.PendingChange{
		ID:         id,
		Collection: collection,
		Type:       changeType,
		Data:       data,
		Timestamp:  q.now(),
		MaxRetries: q.cfg.MaxRetries,
	}
	if changeType == models.ChangeCreate && models.IsTempID(id) {
		incoming.TempID = id
	}
	key := incoming.Key()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	result, drop := coalesce(q.pending[key], incoming)
	if drop {
		// create followed by delete before any flush: the entity never
		// existed remotely, so nothing is sent at all.
		delete(q.pending, key)
		q.stopTimerLocked(key)
		q.persistLocked()
		return
	}
	q.pending[key] = result
	q.persistLocked()

	if debounce {
		q.armTimerLocked(key)
	} else {
		q.stopTimerLocked(key)
	}
}

// armTimerLocked resets the per-key debounce timer. Called with q.mu held.
func (q *Queue) armTimerLocked(key string) {
	if t, ok := q.timers[key]; ok {
		t.Stop()
	}
	q.timers[key] = time.AfterFunc(q.cfg.Debounce, func() {
		q.debounceElapsed(key)
	})
}

// stopTimerLocked cancels the per-key debounce timer. Called with q.mu held.
func (q *Queue) stopTimerLocked(key string) {
	if t, ok := q.timers[key]; ok {
		t.Stop()
		delete(q.timers, key)
	}
}

// debounceElapsed runs when a key's quiet period ends. The first expiration
// starts the settle timer; expirations landing inside the settle window
// ride along in the same flush.
func (q *Queue) debounceElapsed(key string) {
	q.mu.Lock()
	delete(q.timers, key)
	if q.closed || q.settle != nil {
		q.mu.Unlock()
		return
	}
	q.settle = time.AfterFunc(q.cfg.Settle, func() {
		q.mu.Lock()
		q.settle = nil
		q.mu.Unlock()
		if err := q.Flush(context.Background()); err != nil {
			log.Errorf("syncq: flush: %v", err)
		}
	})
	q.mu.Unlock()
}

// Flush sends all pending changes, grouped by collection and chunked into
// batches. A transient batch failure increments the retry count of every
// member; members that exhaust their retries, and whole batches the server
// rejected permanently, are dropped with a terminal-failure notification.
// While offline the pass is skipped without touching retry counts. Changes
// queued while a flush is in progress simply wait for the next pass.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.flushing || len(q.pending) == 0 || q.syncFn == nil {
		q.mu.Unlock()
		return nil
	}
	if q.cfg.Online != nil && !q.cfg.Online() {
		// Attempting the send offline would only burn retry budget. The
		// backlog stays intact; the reconnect trigger (or this poll)
		// starts the next pass.
		q.mu.Unlock()
		q.scheduleRetry(0)
		return nil
	}
	q.flushing = true
	q.failures = make(map[string]error)
	snapshot := make([]*models.PendingChange, 0, len(q.pending))
	for _, c := range q.pending {
		snapshot = append(snapshot, c)
	}
	q.mu.Unlock()
	q.notifyListeners()

	var firstErr error
	for _, collection := range models.ValidCollections() {
		changes := changesFor(snapshot, collection)
		for start := 0; start < len(changes); start += q.cfg.BatchSize {
			end := start + q.cfg.BatchSize
			if end > len(changes) {
				end = len(changes)
			}
			if err := q.flushBatch(ctx, collection, changes[start:end]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	q.mu.Lock()
	q.flushing = false
	remaining := len(q.pending)
	minRetry := 0
	for _, c := range q.pending {
		if minRetry == 0 || c.RetryCount < minRetry {
			minRetry = c.RetryCount
		}
	}
	q.mu.Unlock()
	q.notifyListeners()

	if remaining > 0 {
		q.scheduleRetry(minRetry)
	}
	return firstErr
}

// flushBatch sends one batch and reconciles the outcome into the queue.
func (q *Queue) flushBatch(ctx context.Context, collection models.Collection, batch []*models.PendingChange) error {
	payload := make([]models.PendingChange, len(batch))
	for i, c := range batch {
		payload[i] = *c
	}

	start := q.now()
	err := q.syncFn(ctx, collection, payload)

	q.mu.Lock()
	var dropped []models.PendingChange
	permanent := false
	if err == nil {
		for _, c := range batch {
			// Only remove what we sent; a change coalesced mid-flight is a
			// new entry and stays queued for the next pass.
			if cur, ok := q.pending[c.Key()]; ok && cur == c {
				delete(q.pending, c.Key())
				q.stopTimerLocked(c.Key())
			}
		}
	} else {
		// A rejection retrying cannot fix drops the batch now instead of
		// burning the remaining attempts.
		permanent = !api.Transient(err)
		for _, c := range batch {
			q.failures[c.Key()] = err
			cur, ok := q.pending[c.Key()]
			if !ok || cur != c {
				continue
			}
			repl := *cur
			repl.RetryCount++
			if permanent || repl.RetryCount >= repl.MaxRetries {
				delete(q.pending, c.Key())
				q.stopTimerLocked(c.Key())
				dropped = append(dropped, repl)
			} else {
				q.pending[c.Key()] = &repl
			}
		}
	}
	q.persistLocked()
	q.mu.Unlock()

	if err == nil {
		q.tc.TrackFlushCompleted(collection.String(), len(batch), time.Since(start).Milliseconds())
		if q.notifier != nil {
			q.notifier.Successf("Synced %d %s change(s)", len(batch), collection)
		}
		return nil
	}

	q.tc.TrackFlushFailed(collection.String(), len(batch), batch[0].RetryCount+1)
	for _, d := range dropped {
		q.tc.TrackChangeDropped(d.Collection.String(), string(d.Type))
		if q.notifier == nil {
			continue
		}
		if permanent {
			q.notifier.Errorf("Server rejected %s %s %q; the change was discarded", d.Type, d.Collection, d.ID)
		} else {
			q.notifier.Errorf("Giving up on %s %s %q after %d attempts", d.Type, d.Collection, d.ID, d.MaxRetries)
		}
	}
	return err
}

// scheduleRetry re-arms a flush after a backoff scaled by how often the
// surviving changes already failed.
func (q *Queue) scheduleRetry(retryCount int) {
	delay := q.cfg.Debounce
	for i := 0; i < retryCount && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.retry != nil {
		q.retry.Stop()
	}
	q.retry = time.AfterFunc(delay, func() {
		if err := q.Flush(context.Background()); err != nil {
			log.Errorf("syncq: retry flush: %v", err)
		}
	})
}

// Status returns a derived view of the queue.
func (q *Queue) Status() models.SyncStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := models.SyncStatus{
		PendingCount:  len(q.pending),
		IsSyncing:     q.flushing,
		PerCollection: make(map[models.Collection]int),
	}
	for _, c := range q.pending {
		status.PerCollection[c.Collection]++
	}
	return status
}

// Pending returns a copy of the pending change for a key, if any.
func (q *Queue) Pending(collection models.Collection, id string) (models.PendingChange, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.pending[models.ChangeKey(collection, id)]
	if !ok {
		return models.PendingChange{}, false
	}
	return *c, true
}

// Subscribe registers a status listener and returns an unsubscribe
// function. Listeners run synchronously on the mutating goroutine.
func (q *Queue) Subscribe(fn func(models.SyncStatus)) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.listeners, id)
	}
}

// Close stops all timers. Pending changes stay persisted for the next
// session; callers wanting a last send should Flush first.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for key, t := range q.timers {
		t.Stop()
		delete(q.timers, key)
	}
	if q.settle != nil {
		q.settle.Stop()
		q.settle = nil
	}
	if q.retry != nil {
		q.retry.Stop()
		q.retry = nil
	}
}

func (q *Queue) notifyListeners() {
	status := q.Status()

	q.mu.Lock()
	fns := make([]func(models.SyncStatus), 0, len(q.listeners))
	for _, fn := range q.listeners {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}

// changesFor selects and orders one collection's slice of a snapshot.
// Oldest first, key as tiebreaker, so batches are deterministic.
func changesFor(snapshot []*models.PendingChange, collection models.Collection) []*models.PendingChange {
	var out []*models.PendingChange
	for _, c := range snapshot {
		if c.Collection == collection {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
