// Package notify carries user-visible notifications out of the sync engine.
// It stands in for UI toasts: the engine emits, the embedding application
// subscribes and renders.
package notify

import (
	"fmt"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level string

// Notification levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// historySize bounds the ring of retained notifications.
const historySize = 50

// Notification is one user-visible event.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier fans notifications out to subscribers and retains a small
// history for late joiners (e.g. a status screen). Safe for concurrent use.
type Notifier struct {
	mu        sync.Mutex
	listeners map[int]func(Notification)
	nextID    int
	history   []Notification
	now       func() time.Time
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[int]func(Notification)),
		now:       time.Now,
	}
}

// Subscribe registers a listener and returns an unsubscribe function.
// Listeners run synchronously on the emitting goroutine.
func (n *Notifier) Subscribe(fn func(Notification)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.listeners[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Infof emits an informational notification.
func (n *Notifier) Infof(format string, args ...any) {
	n.emit(LevelInfo, fmt.Sprintf(format, args...))
}

// Successf emits a success notification.
func (n *Notifier) Successf(format string, args ...any) {
	n.emit(LevelSuccess, fmt.Sprintf(format, args...))
}

// Errorf emits an error notification.
func (n *Notifier) Errorf(format string, args ...any) {
	n.emit(LevelError, fmt.Sprintf(format, args...))
}

// Recent returns up to limit notifications, newest last.
func (n *Notifier) Recent(limit int) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	if limit <= 0 || limit > len(n.history) {
		limit = len(n.history)
	}
	out := make([]Notification, limit)
	copy(out, n.history[len(n.history)-limit:])
	return out
}

func (n *Notifier) emit(level Level, msg string) {
	n.mu.Lock()
	note := Notification{Level: level, Message: msg, Time: n.now()}
	n.history = append(n.history, note)
	if len(n.history) > historySize {
		n.history = n.history[len(n.history)-historySize:]
	}
	fns := make([]func(Notification), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(note)
	}
}
