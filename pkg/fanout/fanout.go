// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Listener receives events of type T.
type Listener[T any] interface {
	Notify(event T) error
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc[T any] func(event T) error

// Notify calls f(event).
func (f ListenerFunc[T]) Notify(event T) error {
	return f(event)
}

// Handle identifies a registered listener. The zero Handle is never issued.
type Handle uint64

type entry[T any] struct {
	handle   Handle
	listener Listener[T]
}

// Fanout is a concurrency-safe listener set. Notify takes a snapshot of the
// listeners and calls them without holding the lock, so listeners may add or
// remove listeners (including themselves) from inside Notify.
type Fanout[T any] struct {
	mu      sync.RWMutex
	next    Handle
	entries []entry[T]
	log     *zap.SugaredLogger
}

// New returns an empty Fanout. Listener failures are logged to log; a nil
// logger discards them.
func New[T any](log *zap.SugaredLogger) *Fanout[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Fanout[T]{log: log}
}

// Add registers l and returns the handle used to remove it. Adding the same
// listener twice yields two registrations.
func (f *Fanout[T]) Add(l Listener[T]) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.entries = append(f.entries, entry[T]{handle: f.next, listener: l})
	return f.next
}

// AddFunc is a shorthand for Add(ListenerFunc[T](fn)).
func (f *Fanout[T]) AddFunc(fn func(T) error) Handle {
	return f.Add(ListenerFunc[T](fn))
}

// Remove unregisters the listener behind h. It reports whether h was registered.
func (f *Fanout[T]) Remove(h Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.handle == h {
			f.entries = append(f.entries[:i:i], f.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every listener.
func (f *Fanout[T]) Clear() {
	f.mu.Lock()
	f.entries = nil
	f.mu.Unlock()
}

// Len returns the number of registered listeners.
func (f *Fanout[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Notify delivers event to every listener registered at the time of the call,
// in registration order. It returns the number of listeners that failed.
func (f *Fanout[T]) Notify(event T) int {
	f.mu.RLock()
	snapshot := make([]entry[T], len(f.entries))
	copy(snapshot, f.entries)
	f.mu.RUnlock()

	failed := 0
	for _, e := range snapshot {
		if err := f.deliver(e.listener, event); err != nil {
			failed++
			f.log.Warnw("listener failed", "handle", e.handle, "error", err)
		}
	}
	return failed
}

func (f *Fanout[T]) deliver(l Listener[T], event T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.Notify(event)
}
