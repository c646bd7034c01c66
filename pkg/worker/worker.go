// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/fanout"
	"github.com/telekom/mail-dispatcher/pkg/metrics"
)

var lastID atomic.Uint64

// Worker runs a Runner on its own goroutine until the runner asks to stop,
// the worker is cancelled, or it is terminated.
type Worker struct {
	id        uint64
	opts      Options
	runner    Runner
	registry  *Registry
	log       *zap.SugaredLogger
	listeners *fanout.Fanout[Event]

	mu          sync.Mutex
	running     bool
	restart     bool
	priority    Priority
	startedAt   time.Time
	cancelledAt time.Time
	stopRun     context.CancelFunc
	done        chan struct{}

	state      atomic.Int32
	cancelled  atomic.Bool
	terminated atomic.Bool
}

// New creates a worker that registers itself in registry when started.
func New(registry *Registry, runner Runner, opts Options, log *zap.SugaredLogger) *Worker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	w := &Worker{
		id:       lastID.Add(1),
		opts:     opts,
		runner:   runner,
		registry: registry,
		log:      log.With("worker", opts.Name),
	}
	w.listeners = fanout.New[Event](w.log)
	return w
}

func (w *Worker) ID() uint64 {
	return w.id
}

func (w *Worker) Name() string {
	return w.opts.Name
}

func (w *Worker) State() State {
	if w.terminated.Load() {
		return StateTerminated
	}
	return State(w.state.Load())
}

// Cancelled reports whether Cancel was called on the current run.
func (w *Worker) Cancelled() bool {
	return w.cancelled.Load()
}

func (w *Worker) Terminated() bool {
	return w.terminated.Load()
}

// Running reports whether the scheduling loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Info returns a snapshot of the worker.
func (w *Worker) Info() Info {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Info{
		ID:          w.id,
		Name:        w.opts.Name,
		State:       w.State().String(),
		Priority:    w.priority,
		StartedAt:   w.startedAt,
		CancelledAt: w.cancelledAt,
	}
}

// AddListener registers l for lifecycle events.
func (w *Worker) AddListener(l fanout.Listener[Event]) fanout.Handle {
	return w.listeners.Add(l)
}

// RemoveListener unregisters the listener behind h.
func (w *Worker) RemoveListener(h fanout.Handle) bool {
	return w.listeners.Remove(h)
}

// Start launches the scheduling loop and registers the worker. It reports
// false without doing anything when the worker is already running, has been
// terminated, or another live worker holds the same name. Starting a worker
// whose loop is still winding down after Cancel schedules a fresh run for
// when the old one has exited.
func (w *Worker) Start(priority Priority) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminated.Load() {
		return false
	}
	if w.running {
		if w.cancelled.Load() && !w.restart {
			w.restart = true
			w.priority = priority
			return true
		}
		return false
	}
	if err := w.registry.add(w); err != nil {
		w.log.Debugw("worker not started", "error", err)
		return false
	}
	w.startLocked(priority)
	return true
}

func (w *Worker) startLocked(priority Priority) {
	ctx, stop := context.WithCancel(context.Background())
	w.running = true
	w.restart = false
	w.priority = priority
	w.startedAt = time.Now()
	w.cancelledAt = time.Time{}
	w.cancelled.Store(false)
	w.stopRun = stop
	w.done = make(chan struct{})
	w.state.Store(int32(StateStarting))
	go w.loop(ctx, w.done)
}

// Cancel asks the loop to stop at its next check. It is idempotent and does
// nothing when the worker is not running.
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running || w.cancelled.Load() {
		return
	}
	w.cancelled.Store(true)
	w.cancelledAt = time.Now()
	w.restart = false
	if !w.terminated.Load() {
		w.state.Store(int32(StateCancelling))
	}
	w.stopRun()
}

// Terminate makes the loop return at its next check without notifying
// listeners or deregistering. It never blocks and takes effect once.
func (w *Worker) Terminate() {
	if w.terminated.Swap(true) {
		return
	}
	w.state.Store(int32(StateTerminated))
	w.mu.Lock()
	stop := w.stopRun
	w.restart = false
	w.mu.Unlock()
	if stop != nil {
		stop()
	}
	if t, ok := w.runner.(Terminator); ok {
		t.OnTerminate()
	}
}

// Wait blocks until the current run of the loop has returned or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.emit(EventStart, nil)
	if w.opts.StartDelay > 0 {
		w.sleep(ctx, w.opts.StartDelay)
	}
	if !w.terminated.Load() && !w.cancelled.Load() {
		w.emit(EventRun, nil)
	}

	var lastRun time.Time
	if !w.opts.RunImmediately {
		lastRun = time.Now()
	}
	for {
		if w.terminated.Load() {
			return
		}
		if w.cancelled.Load() {
			w.emit(EventCancelled, nil)
			break
		}
		if lastRun.IsZero() || time.Since(lastRun) >= w.opts.Interval {
			w.state.Store(int32(StateRunning))
			keep, err := w.invoke(ctx)
			lastRun = time.Now()
			switch {
			case err != nil:
				w.log.Errorw("worker run failed", "error", err)
				w.emit(EventError, err)
			case !keep:
				if w.terminated.Load() || w.cancelled.Load() {
					continue
				}
				if w.finish(false) {
					return
				}
				lastRun = time.Time{}
				continue
			}
			if !w.terminated.Load() && !w.cancelled.Load() {
				w.state.Store(int32(StateIdle))
			}
		}
		w.sleep(ctx, w.opts.Tick)
	}
	w.finish(true)
}

// finish deregisters the worker and notifies EventStop. A runner that picked
// up work between its last run and here keeps the loop alive, unless the
// worker was cancelled: finish then reports false and the loop continues.
func (w *Worker) finish(cancelled bool) bool {
	w.mu.Lock()
	if !cancelled && !w.cancelled.Load() && w.pendingLocked() {
		w.mu.Unlock()
		return false
	}
	w.registry.remove(w)
	w.running = false
	if !w.terminated.Load() {
		w.state.Store(int32(StateStopped))
	}
	restart := w.restart && !w.terminated.Load()
	w.mu.Unlock()

	w.emit(EventStop, nil)

	if restart {
		w.mu.Lock()
		if !w.running && w.restart && !w.terminated.Load() {
			if err := w.registry.add(w); err != nil {
				w.restart = false
				w.log.Debugw("worker restart skipped", "error", err)
			} else {
				w.startLocked(w.priority)
			}
		}
		w.mu.Unlock()
	}
	return true
}

func (w *Worker) pendingLocked() bool {
	p, ok := w.runner.(PendingReporter)
	return ok && p.Pending()
}

func (w *Worker) invoke(ctx context.Context) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			keep = true
			err = fmt.Errorf("worker %q panicked: %v", w.opts.Name, r)
		}
	}()
	return w.runner.RunOnce(ctx)
}

// sleep waits for d or until the run context ends. It reports whether the
// full duration elapsed.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) emit(t EventType, err error) {
	metrics.WorkerEvents.WithLabelValues(w.opts.Name, t.String()).Inc()
	w.listeners.Notify(Event{
		Type:     t,
		WorkerID: w.id,
		Worker:   w.opts.Name,
		Err:      err,
		Time:     time.Now(),
	})
}
