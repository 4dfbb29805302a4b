// Package connection tracks network health: the platform-level online
// signal plus periodic probes of the backend's liveness endpoint.
package connection

import (
	"context"
	"sync"
	"time"

	"github.com/asteroid-belt/skillsync/internal/log"
	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/notify"
	"github.com/asteroid-belt/skillsync/internal/signals"
)

// DefaultProbeInterval is how often the backend is probed.
const DefaultProbeInterval = 30 * time.Second

// Prober checks backend liveness. Satisfied by *api.Client.
type Prober interface {
	Health(ctx context.Context) (time.Duration, error)
}

// Config holds monitor configuration.
type Config struct {
	ProbeInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ProbeInterval: DefaultProbeInterval}
}

// Monitor maintains the derived ConnectionState. Two inputs feed it: the
// platform online/offline signal (via a signals.Bus) and health probes.
// A failed probe means "server down", a dropped online signal means "no
// network"; the two are kept distinct.
type Monitor struct {
	prober   Prober
	notifier *notify.Notifier
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	state models.ConnectionState
}

// New creates a Monitor and subscribes it to the bus's online/offline
// events. The monitor starts optimistic: online, backend assumed
// unreachable until the first probe.
func New(cfg Config, prober Prober, bus *signals.Bus, notifier *notify.Notifier) *Monitor {
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	m := &Monitor{
		prober:   prober,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		state: models.ConnectionState{
			Online:  true,
			Quality: models.QualityPoor,
		},
	}

	if bus != nil {
		bus.OnOnline(func() { m.SetOnline(true) })
		bus.OnOffline(func() { m.SetOnline(false) })
	}

	return m
}

// State returns a copy of the current connection state.
func (m *Monitor) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports the platform-level signal.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Online
}

// BackendReachable reports whether the last probe succeeded.
func (m *Monitor) BackendReachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.BackendReachable
}

// Quality returns the current connection quality.
func (m *Monitor) Quality() models.Quality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Quality
}

// SetOnline flips the platform-level signal. Transition edges notify the
// user; a transition to online also triggers an immediate check.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	was := m.state.Online
	m.state.Online = online
	if !online {
		m.state.Quality = models.QualityOffline
	}
	m.mu.Unlock()

	if was == online {
		return
	}
	if online {
		if m.notifier != nil {
			m.notifier.Infof("Back online, reconnecting...")
		}
		go func() {
			_, _ = m.Check(context.Background())
		}()
	} else if m.notifier != nil {
		m.notifier.Errorf("Connection lost. Changes will sync when you're back online.")
	}
}

// Check probes the backend once and updates the derived state. It returns
// whether the backend is reachable.
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	latency, err := m.prober.Health(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.LastChecked = m.now()
	m.state.Latency = latency

	if err != nil {
		// Server down is not the same as no network: Online is untouched.
		m.state.BackendReachable = false
		if m.state.Online {
			m.state.Quality = models.QualityPoor
		}
		return false, err
	}

	m.state.BackendReachable = true
	if m.state.Online {
		m.state.Quality = models.ClassifyLatency(latency)
	} else {
		m.state.Quality = models.QualityOffline
	}
	return true, nil
}

// Run probes immediately and then on every tick until ctx is canceled.
// Poll results update state silently; only signal transitions produce
// user-visible notifications.
func (m *Monitor) Run(ctx context.Context) {
	if _, err := m.Check(ctx); err != nil {
		log.Errorf("connection: initial health check: %v", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.Check(ctx)
		}
	}
}
