// Package signals decouples the sync engine from platform-level lifecycle
// events. The embedding application (a UI shell, a desktop bridge, a test)
// emits events on a Bus; engine components register interest without ever
// touching platform globals.
package signals

import "sync"

// Bus fans platform events out to registered handlers. Handlers run
// synchronously on the emitting goroutine, in registration order.
type Bus struct {
	mu      sync.Mutex
	online  []func()
	offline []func()
	hidden  []func()
	closing []func()
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// OnOnline registers a handler for network-restored events.
func (b *Bus) OnOnline(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = append(b.online, fn)
}

// OnOffline registers a handler for network-lost events.
func (b *Bus) OnOffline(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = append(b.offline, fn)
}

// OnHidden registers a handler for the application losing visibility.
func (b *Bus) OnHidden(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hidden = append(b.hidden, fn)
}

// OnClosing registers a handler for imminent shutdown. Handlers get a
// best-effort chance to run; shutdown does not wait for slow work.
func (b *Bus) OnClosing(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing = append(b.closing, fn)
}

// EmitOnline signals that the network came back.
func (b *Bus) EmitOnline() { b.emit(&b.online) }

// EmitOffline signals that the network was lost.
func (b *Bus) EmitOffline() { b.emit(&b.offline) }

// EmitHidden signals that the application became hidden.
func (b *Bus) EmitHidden() { b.emit(&b.hidden) }

// EmitClosing signals imminent shutdown.
func (b *Bus) EmitClosing() { b.emit(&b.closing) }

func (b *Bus) emit(handlers *[]func()) {
	b.mu.Lock()
	fns := append([]func(){}, *handlers...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
