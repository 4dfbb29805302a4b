// Package app wires the sync engine together: store, API client, change
// queue, connection monitor and cache, plus the signal plumbing between
// them. Everything is constructed per-instance so tests and embedders can
// run several isolated engines in one process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/asteroid-belt/skillsync/internal/api"
	"github.com/asteroid-belt/skillsync/internal/cache"
	"github.com/asteroid-belt/skillsync/internal/config"
	"github.com/asteroid-belt/skillsync/internal/connection"
	"github.com/asteroid-belt/skillsync/internal/log"
	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/notify"
	"github.com/asteroid-belt/skillsync/internal/signals"
	"github.com/asteroid-belt/skillsync/internal/store"
	"github.com/asteroid-belt/skillsync/internal/syncq"
	"github.com/asteroid-belt/skillsync/internal/telemetry"
)

// closingFlushTimeout bounds the last-chance flush on shutdown.
const closingFlushTimeout = 5 * time.Second

// App is the assembled sync engine.
type App struct {
	Config    *config.Config
	Store     *store.Store
	API       *api.Client
	Bus       *signals.Bus
	Notifier  *notify.Notifier
	Telemetry telemetry.Client
	Queue     *syncq.Queue
	Monitor   *connection.Monitor
	Cache     *cache.Cache
}

// New assembles an engine from config. The store opens (or degrades to
// memory-only), persisted pending changes are restored into the queue, and
// cached snapshots are warm-loaded, so the app is usable offline right away.
func New(cfg *config.Config) (*App, error) {
	paths := config.GetPaths(cfg)

	if err := log.Init(paths.Logs); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	st, err := store.Open(store.DefaultConfig(paths.Database))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
	})

	bus := signals.NewBus()
	notifier := notify.New()
	tc := telemetry.New()

	monitor := connection.New(connection.Config{
		ProbeInterval: cfg.Sync.ProbeInterval,
	}, client, bus, notifier)

	// The queue consults the monitor before every pass: while offline the
	// backlog is held back rather than retried into oblivion.
	queue := syncq.New(syncq.Config{
		Debounce:   cfg.Sync.Debounce,
		BatchSize:  cfg.Sync.BatchSize,
		MaxRetries: cfg.Sync.MaxRetries,
		Online:     monitor.Online,
	}, st, notifier, tc, replayFunc(client))

	ch := cache.New(cache.Config{TTL: cfg.Sync.CacheTTL}, client, st, queue, notifier, tc)

	a := &App{
		Config:    cfg,
		Store:     st,
		API:       client,
		Bus:       bus,
		Notifier:  notifier,
		Telemetry: tc,
		Queue:     queue,
		Monitor:   monitor,
		Cache:     ch,
	}
	a.wireSignals()
	return a, nil
}

// wireSignals connects lifecycle events to the queue: coming back online
// replays the backlog, losing visibility flushes opportunistically, and
// shutdown gets one bounded last-chance flush.
func (a *App) wireSignals() {
	a.Bus.OnOnline(func() {
		a.Telemetry.TrackConnectionChanged(string(a.Monitor.Quality()), a.Monitor.BackendReachable())
		go func() {
			if err := a.Queue.Flush(context.Background()); err != nil {
				log.Errorf("app: flush on reconnect: %v", err)
			}
		}()
	})
	a.Bus.OnOffline(func() {
		a.Telemetry.TrackConnectionChanged(string(models.QualityOffline), false)
	})
	a.Bus.OnHidden(func() {
		go func() {
			if err := a.Queue.Flush(context.Background()); err != nil {
				log.Errorf("app: flush on hide: %v", err)
			}
		}()
	})
	a.Bus.OnClosing(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closingFlushTimeout)
		defer cancel()
		if err := a.Queue.Flush(ctx); err != nil {
			// Unsent changes are persisted; the next session replays them.
			log.Errorf("app: flush on close: %v", err)
		}
	})
}

// Run drives the connection monitor until ctx is canceled.
func (a *App) Run(ctx context.Context) {
	a.Monitor.Run(ctx)
}

// Close emits the closing signal, then releases resources. Pending changes
// that did not make it out stay persisted.
func (a *App) Close() error {
	a.Bus.EmitClosing()
	a.Queue.Close()
	a.Telemetry.Close()
	err := a.Store.Close()
	if cerr := log.Close(); err == nil {
		err = cerr
	}
	return err
}

// replayFunc adapts the API client to the queue's flush callback. Updates
// for one collection travel as a single batched call; creates and deletes
// have no batch endpoint and go out individually. Any failure fails the
// whole batch, so every member is retried together.
func replayFunc(client *api.Client) syncq.SyncFunc {
	return func(ctx context.Context, collection models.Collection, changes []models.PendingChange) error {
		var updates []api.BatchItem
		for _, ch := range changes {
			switch ch.Type {
			case models.ChangeCreate:
				if err := client.Create(ctx, collection, ch.Data, nil); err != nil {
					return err
				}
			case models.ChangeDelete:
				if err := client.Delete(ctx, collection, ch.ID); err != nil {
					return err
				}
			case models.ChangeUpdate:
				updates = append(updates, api.BatchItem{ID: ch.ID, Data: ch.Data})
			}
		}
		return client.PatchBatch(ctx, collection, updates)
	}
}
