/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/fanout"
	"github.com/telekom/mail-dispatcher/pkg/metrics"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

const (
	DefaultWorkerName  = "mail dispatch worker"
	DefaultRunInterval = 10 * time.Second
	DefaultItemDelay   = 200 * time.Millisecond
)

// QueueConfig configures the dispatch worker.
type QueueConfig struct {
	WorkerName  string
	RunInterval time.Duration
	StartDelay  time.Duration
	// ItemDelay throttles the drain: the worker waits this long after each
	// attempt.
	ItemDelay time.Duration
	Tick      time.Duration
}

// DefaultQueueConfig returns the production settings.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerName:  DefaultWorkerName,
		RunInterval: DefaultRunInterval,
		ItemDelay:   DefaultItemDelay,
		Tick:        worker.DefaultTick,
	}
}

// Queue accepts items from any goroutine and delivers them on a single
// managed worker. Items are appended to the incoming list; each drain pass
// empties the sending list one item at a time and then moves everything that
// arrived meanwhile into sending, keeping arrival order.
//
// Locks guard list mutations only. Transport calls and result notifications
// run without holding either list lock; passMu keeps drain passes from
// overlapping.
type Queue struct {
	transport Transport
	cfg       QueueConfig
	log       *zap.SugaredLogger
	worker    *worker.Worker
	results   *fanout.Fanout[Outcome]

	passMu     sync.Mutex
	sendingMu  sync.Mutex
	sending    []*Item
	incomingMu sync.Mutex
	incoming   []*Item
}

// NewQueue creates a queue whose worker registers in registry under
// cfg.WorkerName. The worker is not started.
func NewQueue(registry *worker.Registry, transport Transport, cfg QueueConfig, log *zap.SugaredLogger) *Queue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.WorkerName == "" {
		cfg.WorkerName = DefaultWorkerName
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	log = log.Named("mail-queue")
	log.Infow("Initializing mail queue",
		"worker", cfg.WorkerName,
		"runInterval", cfg.RunInterval,
		"itemDelay", cfg.ItemDelay)

	q := &Queue{
		transport: transport,
		cfg:       cfg,
		log:       log,
		results:   fanout.New[Outcome](log),
	}
	q.worker = worker.New(registry, q, worker.Options{
		Name:           cfg.WorkerName,
		Interval:       cfg.RunInterval,
		StartDelay:     cfg.StartDelay,
		RunImmediately: true,
		Tick:           cfg.Tick,
	}, log)
	return q
}

// Worker exposes the dispatch worker, for lifecycle listeners and inspection.
func (q *Queue) Worker() *worker.Worker {
	return q.worker
}

// AddResultListener registers l for outcomes of queued and immediate sends.
func (q *Queue) AddResultListener(l fanout.Listener[Outcome]) fanout.Handle {
	return q.results.Add(l)
}

func (q *Queue) RemoveResultListener(h fanout.Handle) bool {
	return q.results.Remove(h)
}

// Enqueue appends item to the incoming list. It never waits for a drain pass.
func (q *Queue) Enqueue(item Item) {
	it := item
	it.normalize()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}

	q.incomingMu.Lock()
	q.incoming = append(q.incoming, &it)
	q.incomingMu.Unlock()

	metrics.ItemsQueued.WithLabelValues(it.Database()).Inc()
	q.updateDepth()
	q.log.Debugw("Item queued for sending",
		"id", it.ID,
		"endpoint", it.EndpointID,
		"subject", it.Subject)
}

// Start starts the dispatch worker unless it is already running. It reports
// whether a run was started or scheduled.
//
// The running check happens under the worker lock, so a Start racing the
// worker's final pending check either keeps that run alive or starts a new one.
func (q *Queue) Start(priority worker.Priority) bool {
	return q.worker.Start(priority)
}

// Cancel asks the dispatch worker to stop after the current attempt. Items
// still queued stay queued.
func (q *Queue) Cancel() {
	q.worker.Cancel()
}

// RunOnce performs one drain pass. It reports whether the sending list holds
// work for the next pass.
func (q *Queue) RunOnce(ctx context.Context) (bool, error) {
	q.passMu.Lock()
	defer q.passMu.Unlock()

	for {
		if ctx.Err() != nil {
			q.log.Infow("Drain pass aborted", "pending", q.Depth())
			return false, nil
		}
		item := q.head()
		if item == nil {
			break
		}

		outcome := q.attempt(context.WithoutCancel(ctx), item)
		q.release(item)
		q.updateDepth()
		q.results.Notify(outcome)

		if !q.pause(ctx) {
			q.log.Infow("Drain pass aborted", "pending", q.Depth())
			return false, nil
		}
	}

	return q.migrate() > 0, nil
}

// OnTerminate is called when the worker is terminated after the shutdown
// grace period.
func (q *Queue) OnTerminate() {
	q.log.Warnw("Dispatch worker terminated", "pending", q.Depth())
}

// Pending reports whether items are waiting in the incoming list.
func (q *Queue) Pending() bool {
	q.incomingMu.Lock()
	defer q.incomingMu.Unlock()
	return len(q.incoming) > 0
}

// SendImmediate delivers item on the calling goroutine, bypassing both lists
// and the throttle delay. The outcome is published to result listeners like
// any queued delivery.
func (q *Queue) SendImmediate(ctx context.Context, item Item) Outcome {
	it := item
	it.normalize()
	outcome := q.attempt(ctx, &it)
	q.results.Notify(outcome)
	return outcome
}

// Count returns the number of items in either list whose endpoint belongs to
// database. With remove set, those items are dropped from the queue. An item
// whose attempt is in flight is counted and removed from the list, but the
// attempt itself completes.
func (q *Queue) Count(database string, remove bool) int {
	q.sendingMu.Lock()
	q.incomingMu.Lock()
	var n int
	q.sending, n = filterDatabase(q.sending, database, remove)
	var m int
	q.incoming, m = filterDatabase(q.incoming, database, remove)
	q.incomingMu.Unlock()
	q.sendingMu.Unlock()

	if remove && n+m > 0 {
		metrics.ItemsCancelled.WithLabelValues(database).Add(float64(n + m))
		q.updateDepth()
		q.log.Infow("Cancelled queued items", "database", database, "count", n+m)
	}
	return n + m
}

// CancelNamespace drops every queued item whose endpoint belongs to database.
func (q *Queue) CancelNamespace(database string) {
	q.Count(database, true)
}

// Depth returns the number of items in both lists.
func (q *Queue) Depth() int {
	q.sendingMu.Lock()
	q.incomingMu.Lock()
	defer q.sendingMu.Unlock()
	defer q.incomingMu.Unlock()
	return len(q.sending) + len(q.incoming)
}

func filterDatabase(items []*Item, database string, remove bool) ([]*Item, int) {
	count := 0
	kept := items[:0:0]
	for _, it := range items {
		if it.Database() == database {
			count++
			if remove {
				continue
			}
		}
		kept = append(kept, it)
	}
	if !remove {
		return items, count
	}
	return kept, count
}

func (q *Queue) head() *Item {
	q.sendingMu.Lock()
	defer q.sendingMu.Unlock()
	if len(q.sending) == 0 {
		return nil
	}
	return q.sending[0]
}

// release removes item from the sending list unless it was already removed
// by a bulk cancellation.
func (q *Queue) release(item *Item) {
	q.sendingMu.Lock()
	defer q.sendingMu.Unlock()
	for i, it := range q.sending {
		if it == item {
			q.sending = append(q.sending[:i], q.sending[i+1:]...)
			return
		}
	}
}

// migrate moves the incoming list behind the sending list and returns the
// resulting length of sending.
func (q *Queue) migrate() int {
	q.sendingMu.Lock()
	defer q.sendingMu.Unlock()
	q.incomingMu.Lock()
	moved := len(q.incoming)
	q.sending = append(q.sending, q.incoming...)
	q.incoming = nil
	q.incomingMu.Unlock()
	if moved > 0 {
		q.log.Debugw("Moved incoming items to sending", "count", moved)
	}
	return len(q.sending)
}

func (q *Queue) attempt(ctx context.Context, item *Item) (outcome Outcome) {
	outcome = newOutcome(item)
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("panic in transport recovered", "id", item.ID, "panic", r)
			outcome.Status = CodeGeneralError
			outcome.ErrorCode = int(CodeGeneralError)
			outcome.ErrorText = truncate(fmt.Sprintf("transport panic: %v", r), MaxErrorTextLength)
			outcome.CompletedAt = time.Now()
		}
	}()

	err := q.transport.Deliver(ctx, item.Endpoint, *item)
	now := time.Now()
	outcome.complete(err, now)
	if err != nil {
		q.log.Warnw("Item delivery failed",
			"id", item.ID,
			"endpoint", item.EndpointID,
			"errorCode", outcome.ErrorCode,
			"error", outcome.ErrorText)
		return outcome
	}
	item.Sent = true
	item.SentAt = now
	q.log.Infow("Item sent successfully",
		"id", item.ID,
		"endpoint", item.EndpointID,
		"recipient", item.RecipientAddress)
	return outcome
}

// pause waits ItemDelay. It reports false when ctx ended first.
func (q *Queue) pause(ctx context.Context) bool {
	if q.cfg.ItemDelay == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(q.cfg.ItemDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *Queue) updateDepth() {
	metrics.QueueDepth.Set(float64(q.Depth()))
}
