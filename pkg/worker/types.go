// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"time"
)

// EventType identifies a lifecycle transition of a worker.
type EventType int

const (
	EventStart EventType = iota
	EventRun
	EventStop
	EventError
	EventCancelled
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventRun:
		return "run"
	case EventStop:
		return "stop"
	case EventError:
		return "error"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event is delivered to worker listeners on every lifecycle transition.
type Event struct {
	Type     EventType
	WorkerID uint64
	Worker   string
	// Err is set for EventError.
	Err  error
	Time time.Time
}

// Priority is the scheduling priority requested when a worker starts.
// Goroutines cannot be prioritised, so the value is recorded and reported
// but has no effect on scheduling.
type Priority int

const (
	PriorityBelowNormal Priority = -1
	PriorityNormal      Priority = 0
	PriorityAboveNormal Priority = 1
	PriorityHighest     Priority = 2
	PriorityCritical    Priority = 15
)

// State is the position of a worker in its lifecycle.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateIdle
	StateCancelling
	StateStopped
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateCancelling:
		return "cancelling"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Runner performs one unit of work per scheduled invocation. Returning false
// stops the worker; an error is reported as EventError and the loop keeps
// going. The context is cancelled when the worker is cancelled or terminated.
type Runner interface {
	RunOnce(ctx context.Context) (bool, error)
}

// RunnerFunc is a Runner backed by a plain function. It is the generic
// interval worker: the function runs every Options.Interval until it returns
// false or the worker is cancelled.
type RunnerFunc func(ctx context.Context) (bool, error)

// RunOnce calls f(ctx).
func (f RunnerFunc) RunOnce(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Terminator is implemented by runners that need to react to Terminate, for
// example by interrupting work that does not watch the context. OnTerminate
// must not block.
type Terminator interface {
	OnTerminate()
}

// PendingReporter is implemented by runners that can receive work from other
// goroutines. A worker whose runner reports pending work does not stop on its
// own; it schedules another run instead.
type PendingReporter interface {
	Pending() bool
}

// Options configure a Worker.
type Options struct {
	// Name is used for registry lookups and uniqueness. Unnamed workers are
	// registered but can only be found by index.
	Name string
	// Interval is the minimum time between two invocations of the runner.
	Interval time.Duration
	// StartDelay postpones the first invocation. Cancellation is honoured
	// during the delay.
	StartDelay time.Duration
	// RunImmediately invokes the runner right after the start delay instead
	// of waiting one Interval first.
	RunImmediately bool
	// Tick bounds how long the loop sleeps between checks for cancellation
	// and due work.
	Tick time.Duration
}

const (
	DefaultStartDelay = 500 * time.Millisecond
	DefaultInterval   = time.Second
	DefaultTick       = 100 * time.Millisecond
)

// DefaultOptions returns the options of a generic interval worker.
func DefaultOptions(name string) Options {
	return Options{
		Name:       name,
		Interval:   DefaultInterval,
		StartDelay: DefaultStartDelay,
		Tick:       DefaultTick,
	}
}

// Info is a point-in-time view of a worker.
type Info struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Priority    Priority  `json:"priority"`
	StartedAt   time.Time `json:"startedAt"`
	CancelledAt time.Time `json:"cancelledAt,omitzero"`
}
