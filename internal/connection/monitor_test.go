package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/notify"
	"github.com/asteroid-belt/skillsync/internal/signals"
)

// fakeProber returns scripted latencies/errors and records calls.
type fakeProber struct {
	mu      sync.Mutex
	latency time.Duration
	err     error
	calls   int
}

func (p *fakeProber) Health(ctx context.Context) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.latency, p.err
}

func (p *fakeProber) set(latency time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = latency
	p.err = err
}

func TestCheckClassifiesQuality(t *testing.T) {
	p := &fakeProber{latency: 200 * time.Millisecond}
	m := New(DefaultConfig(), p, nil, nil)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	state := m.State()
	assert.True(t, state.BackendReachable)
	assert.Equal(t, models.QualityGood, state.Quality)
	assert.False(t, state.LastChecked.IsZero())

	p.set(2*time.Second, nil)
	_, err = m.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.QualitySlow, m.Quality())

	p.set(4*time.Second, nil)
	_, err = m.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.QualityPoor, m.Quality())
}

func TestFailedProbeKeepsOnlineSignal(t *testing.T) {
	p := &fakeProber{err: errors.New("connection refused")}
	m := New(DefaultConfig(), p, nil, nil)

	ok, err := m.Check(context.Background())
	require.Error(t, err)
	assert.False(t, ok)

	// "Server down" must not be conflated with "no network".
	assert.True(t, m.Online())
	assert.False(t, m.BackendReachable())
	assert.Equal(t, models.QualityPoor, m.Quality())
}

func TestOfflineForcesQuality(t *testing.T) {
	p := &fakeProber{latency: 100 * time.Millisecond}
	m := New(DefaultConfig(), p, nil, nil)

	m.SetOnline(false)
	assert.Equal(t, models.QualityOffline, m.Quality())

	// Even a successful probe cannot override the offline signal.
	_, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.QualityOffline, m.Quality())
	assert.True(t, m.BackendReachable())
}

func TestNotifiesOnTransitionEdgesOnly(t *testing.T) {
	p := &fakeProber{latency: 100 * time.Millisecond}
	n := notify.New()

	var mu sync.Mutex
	var notes []notify.Notification
	n.Subscribe(func(note notify.Notification) {
		mu.Lock()
		defer mu.Unlock()
		notes = append(notes, note)
	})

	m := New(DefaultConfig(), p, nil, n)

	// Repeated checks while online: no notifications.
	for i := 0; i < 3; i++ {
		_, _ = m.Check(context.Background())
	}
	mu.Lock()
	assert.Empty(t, notes)
	mu.Unlock()

	m.SetOnline(false)
	m.SetOnline(false) // repeated signal, no new edge
	m.SetOnline(true)

	// The online edge fires an async check; wait for it to settle.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notes) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, notify.LevelError, notes[0].Level)
	assert.Equal(t, notify.LevelInfo, notes[1].Level)
}

func TestOnlineTransitionTriggersCheck(t *testing.T) {
	p := &fakeProber{latency: 100 * time.Millisecond}
	m := New(DefaultConfig(), p, nil, nil)

	m.SetOnline(false)
	m.SetOnline(true)

	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestBusWiring(t *testing.T) {
	p := &fakeProber{latency: 100 * time.Millisecond}
	bus := signals.NewBus()
	m := New(DefaultConfig(), p, bus, nil)

	bus.EmitOffline()
	assert.False(t, m.Online())

	bus.EmitOnline()
	assert.True(t, m.Online())
}

func TestRunProbesPeriodically(t *testing.T) {
	p := &fakeProber{latency: 50 * time.Millisecond}
	m := New(Config{ProbeInterval: 20 * time.Millisecond}, p, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls >= 3
	}, time.Second, 10*time.Millisecond)
}
