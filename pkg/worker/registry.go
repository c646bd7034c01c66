// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/metrics"
)

// DefaultTerminateTimeout is the grace period TerminateAll callers use when
// none is configured.
const DefaultTerminateTimeout = 5 * time.Second

// ErrNameInUse is returned when a live worker already holds the requested name.
var ErrNameInUse = errors.New("worker name in use")

// Registry tracks started workers. A worker is added when it starts and
// removed when its loop exits on its own or after cancellation.
//
// The registry never calls into a worker while holding its own lock, so
// workers may take their lock and then touch the registry.
type Registry struct {
	mu      sync.Mutex
	workers []*Worker
	// changed is closed and replaced whenever a worker is removed.
	changed chan struct{}
	log     *zap.SugaredLogger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		changed: make(chan struct{}),
		log:     log.Named("worker-registry"),
	}
}

func (r *Registry) add(w *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.workers {
		if existing == w {
			return nil
		}
		if w.opts.Name != "" && existing.opts.Name == w.opts.Name && !existing.cancelled.Load() {
			return fmt.Errorf("%w: %q", ErrNameInUse, w.opts.Name)
		}
	}
	r.workers = append(r.workers, w)
	metrics.WorkersActive.Set(float64(len(r.workers)))
	return nil
}

func (r *Registry) remove(w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.workers {
		if existing == w {
			r.workers = append(r.workers[:i], r.workers[i+1:]...)
			r.notifyLocked()
			return
		}
	}
}

func (r *Registry) notifyLocked() {
	metrics.WorkersActive.Set(float64(len(r.workers)))
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Registry) snapshot() []*Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Worker, len(r.workers))
	copy(out, r.workers)
	return out
}

// ActiveCount returns the number of registered workers, cancelled ones
// included until their loops exit.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// At returns the worker at index i in registration order.
func (r *Registry) At(i int) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.workers) {
		return nil, false
	}
	return r.workers[i], true
}

// Find returns the registered worker named name, preferring one that has not
// been cancelled.
func (r *Registry) Find(name string) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *Worker
	for _, w := range r.workers {
		if w.opts.Name != name {
			continue
		}
		if !w.cancelled.Load() {
			return w, true
		}
		if found == nil {
			found = w
		}
	}
	return found, found != nil
}

// Exists reports whether a registered, not cancelled worker is named name.
func (r *Registry) Exists(name string) bool {
	w, ok := r.Find(name)
	return ok && !w.Cancelled()
}

// Cancel cancels the worker named name and optionally drops its listeners.
// It reports false when no such worker is registered.
func (r *Registry) Cancel(name string, removeListeners bool) bool {
	w, ok := r.Find(name)
	if !ok {
		return false
	}
	if removeListeners {
		w.listeners.Clear()
	}
	w.Cancel()
	return true
}

// CancelAll cancels every registered worker.
func (r *Registry) CancelAll() {
	for _, w := range r.snapshot() {
		w.Cancel()
	}
}

// Snapshot describes every registered worker.
func (r *Registry) Snapshot() []Info {
	workers := r.snapshot()
	out := make([]Info, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.Info())
	}
	return out
}

// TerminateAll cancels every worker and waits up to timeout for the registry
// to empty. Workers still registered after the timeout are removed and
// terminated. It returns the number of workers that had to be terminated.
func (r *Registry) TerminateAll(timeout time.Duration) int {
	r.CancelAll()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		r.mu.Lock()
		remaining := len(r.workers)
		changed := r.changed
		r.mu.Unlock()
		if remaining == 0 {
			return 0
		}
		select {
		case <-changed:
		case <-timer.C:
			return r.terminateStragglers()
		}
	}
}

func (r *Registry) terminateStragglers() int {
	r.mu.Lock()
	stragglers := r.workers
	r.workers = nil
	r.notifyLocked()
	r.mu.Unlock()

	for _, w := range stragglers {
		r.log.Warnw("terminating worker after shutdown timeout", "worker", w.Name(), "id", w.ID())
		w.Terminate()
	}
	return len(stragglers)
}
