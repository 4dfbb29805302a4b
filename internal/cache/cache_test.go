package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/store"
	"github.com/asteroid-belt/skillsync/internal/syncq"
)

// fakeBackend plays the remote API with scripted listings and a counter
// per endpoint.
type fakeBackend struct {
	mu        sync.Mutex
	lists     map[models.Collection]string
	listCalls map[models.Collection]int
	listErr   error
	createErr error
	deleteErr error
	deleted   []string
	nextID    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		lists:     make(map[models.Collection]string),
		listCalls: make(map[models.Collection]int),
	}
}

func (b *fakeBackend) List(ctx context.Context, collection models.Collection) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls[collection]++
	if b.listErr != nil {
		return nil, b.listErr
	}
	raw, ok := b.lists[collection]
	if !ok {
		raw = "[]"
	}
	return json.RawMessage(raw), nil
}

func (b *fakeBackend) Create(ctx context.Context, collection models.Collection, body, dest any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return b.createErr
	}

	// Round-trip through JSON like a real server, assigning an id.
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	b.nextID++
	m["id"] = fmt.Sprintf("srv-%d", b.nextID)
	data, err = json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (b *fakeBackend) Delete(ctx context.Context, collection models.Collection, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, fmt.Sprintf("%s/%s", collection, id))
	return nil
}

func (b *fakeBackend) calls(collection models.Collection) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls[collection]
}

// testCache wires a cache to a fake backend and an explicit-flush queue.
func testCache(t *testing.T, backend *fakeBackend) (*Cache, *syncq.Queue, *recorder) {
	t.Helper()

	r := &recorder{}
	q := syncq.New(syncq.Config{Debounce: time.Hour, Settle: 10 * time.Millisecond, BatchSize: 20, MaxRetries: 3},
		store.Memory(), nil, nil, r.sync)
	t.Cleanup(q.Close)

	c := New(DefaultConfig(), backend, store.Memory(), q, nil, nil)
	return c, q, r
}

// recorder captures sync batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]models.PendingChange
	err     error
}

func (r *recorder) sync(ctx context.Context, collection models.Collection, changes []models.PendingChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestFetchEmptyCacheBlocks(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go"},{"id":"s2","name":"SQL"}]`
	c, _, _ := testCache(t, backend)

	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "s1", skills[0].ID)
	assert.Equal(t, 1, backend.calls(models.CollectionSkills))
}

func TestFetchWithinTTLHitsNetworkOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	_, err = c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.calls(models.CollectionSkills), "second read within TTL is cache-only")
}

func TestFetchStaleServesCachedThenRevalidates(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go","status":"learning"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	// Age the collection past its TTL and change what the server returns.
	c.mu.Lock()
	c.collections[models.CollectionSkills].lastFetched = time.Now().Add(-DefaultTTL - time.Minute)
	c.mu.Unlock()
	backend.mu.Lock()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go","status":"mastered"}]`
	backend.mu.Unlock()

	// Stale read returns the previous value synchronously.
	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "learning", skills[0].Status)

	// The background refresh lands shortly after.
	require.Eventually(t, func() bool {
		return backend.calls(models.CollectionSkills) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		skills, err := c.FetchSkills(context.Background(), false)
		return err == nil && len(skills) == 1 && skills[0].Status == "mastered"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestForceRefreshBypassesTTL(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionProjects] = `[{"id":"p1","name":"API"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchProjects(context.Background(), false)
	require.NoError(t, err)
	_, err = c.FetchProjects(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.calls(models.CollectionProjects))
}

func TestCreateInsertsServerCopyAtHead(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	created, err := c.CreateSkill(context.Background(), models.Skill{Name: "Rust", Status: models.SkillStatusLearning})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID, "server-assigned id replaces the temp id")
	assert.False(t, models.IsTempID(created.ID))

	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "srv-1", skills[0].ID, "creates are most-recent-first")
	assert.Equal(t, 1, backend.calls(models.CollectionSkills), "create itself never triggers a list")
}

func TestCreateErrorPropagates(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("503")
	c, _, _ := testCache(t, backend)

	_, err := c.CreateSkill(context.Background(), models.Skill{Name: "Rust"})
	require.Error(t, err)

	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, skills, "a failed create leaves nothing behind")
}

func TestUpdateIsOptimistic(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go","status":"learning"}]`
	c, q, r := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	err = c.UpdateSkill(context.Background(), "s1", models.Patch{"status": models.SkillStatusMastered}, false)
	require.NoError(t, err)

	// Visible immediately, before any network traffic.
	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, models.SkillStatusMastered, skills[0].Status)
	assert.False(t, skills[0].UpdatedAt.IsZero())
	assert.Zero(t, r.count())

	// And flagged as unsynced until the queue flushes.
	assert.True(t, c.Unsynced(models.CollectionSkills, "s1"))
	require.NoError(t, q.Flush(context.Background()))
	assert.False(t, c.Unsynced(models.CollectionSkills, "s1"))
	assert.Equal(t, 1, r.count())
}

func TestUpdateImmediateSurfacesFlushError(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go","status":"learning"}]`
	c, _, r := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	r.mu.Lock()
	r.err = errors.New("backend down")
	r.mu.Unlock()

	err = c.UpdateSkill(context.Background(), "s1", models.Patch{"status": "mastered"}, true)
	require.Error(t, err)

	// Optimistic state stays: no rollback, the record remains unsynced.
	skills, fetchErr := c.FetchSkills(context.Background(), false)
	require.NoError(t, fetchErr)
	assert.Equal(t, "mastered", skills[0].Status)
	assert.True(t, c.Unsynced(models.CollectionSkills, "s1"))
}

func TestUpdateRejectsUnknownRecord(t *testing.T) {
	backend := newFakeBackend()
	c, _, _ := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	err = c.UpdateSkill(context.Background(), "ghost", models.Patch{"status": "mastered"}, false)
	require.Error(t, err)
}

func TestUpdateRejectsBadPatchWithoutMutating(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go","status":"learning"}]`
	c, q, _ := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)

	err = c.UpdateSkill(context.Background(), "s1", models.Patch{"status": "mastered", "stars": 5}, false)
	require.Error(t, err)

	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "learning", skills[0].Status, "rejected patch must not half-apply")
	assert.Equal(t, 0, q.Status().PendingCount)
}

func TestDeleteRemovesLocallyThenRemotely(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionResources] = `[{"id":"r1","title":"Tour"},{"id":"r2","title":"Spec"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchResources(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, c.DeleteResource(context.Background(), "r1"))

	resources, err := c.FetchResources(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "r2", resources[0].ID)

	backend.mu.Lock()
	assert.Equal(t, []string{"resources/r1"}, backend.deleted)
	backend.mu.Unlock()
}

func TestDeleteErrorPropagatesButStaysGoneLocally(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionResources] = `[{"id":"r1","title":"Tour"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchResources(context.Background(), false)
	require.NoError(t, err)

	backend.mu.Lock()
	backend.deleteErr = errors.New("500")
	backend.mu.Unlock()

	err = c.DeleteResource(context.Background(), "r1")
	require.Error(t, err)

	// The item stays displayed-as-gone until the next full refresh.
	resources, err := c.FetchResources(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestWarmLoadServesSnapshotBeforeNetwork(t *testing.T) {
	st, err := store.Open(store.DefaultConfig(filepath.Join(t.TempDir(), "cache.db")))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	st.Save(store.CacheKey("skills"), []models.Skill{{ID: "s1", Name: "Go"}})

	backend := newFakeBackend()
	backend.listErr = errors.New("offline")

	q := syncq.New(syncq.Config{Debounce: time.Hour}, store.Memory(), nil, nil, nil)
	defer q.Close()
	c := New(DefaultConfig(), backend, st, q, nil, nil)

	// The snapshot is served even though the backend is unreachable.
	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "Go", skills[0].Name)
}

func TestWarmLoadKeepsFreshnessAcrossSessions(t *testing.T) {
	st, err := store.Open(store.DefaultConfig(filepath.Join(t.TempDir(), "cache.db")))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	st.Save(store.CacheKey("skills"), []models.Skill{{ID: "s1", Name: "Go"}})
	st.Save(store.KeyCacheMeta, map[models.Collection]time.Time{
		models.CollectionSkills: time.Now().Add(-time.Minute),
	})

	backend := newFakeBackend()
	backend.listErr = errors.New("offline")

	q := syncq.New(syncq.Config{Debounce: time.Hour}, store.Memory(), nil, nil, nil)
	defer q.Close()
	c := New(DefaultConfig(), backend, st, q, nil, nil)

	// Within TTL: served from the snapshot without any revalidation.
	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.False(t, c.Stats().LastFetched[models.CollectionSkills].IsZero())
}

func TestStats(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1"},{"id":"s2"}]`
	c, _, _ := testCache(t, backend)

	_, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, c.UpdateSkill(context.Background(), "s1", models.Patch{"notes": "x"}, false))

	stats := c.Stats()
	assert.Equal(t, 2, stats.Records[models.CollectionSkills])
	assert.Equal(t, 0, stats.Records[models.CollectionProjects])
	assert.False(t, stats.LastFetched[models.CollectionSkills].IsZero())
	assert.Equal(t, 1, stats.Pending.PendingCount)
}

func TestCallerCannotMutateCache(t *testing.T) {
	backend := newFakeBackend()
	backend.lists[models.CollectionSkills] = `[{"id":"s1","name":"Go"}]`
	c, _, _ := testCache(t, backend)

	skills, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	skills[0].Name = "hacked"

	again, err := c.FetchSkills(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Go", again[0].Name)
}
