// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/ledger"
	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

// MaxQueueCountWait caps the back-off a caller may request from QueueCountWait.
const MaxQueueCountWait = time.Second

// Options configure a Dispatcher.
type Options struct {
	Queue mail.QueueConfig
	// ResultRetention enables pruning of uncollected outcomes older than this.
	// Zero keeps outcomes until they are collected.
	ResultRetention time.Duration
	PruneInterval   time.Duration
}

// SendRequest is one item submitted through the boundary.
type SendRequest struct {
	EndpointID       int64
	ItemID           int64
	SenderName       string
	SenderAddress    string
	RecipientName    string
	RecipientAddress string
	Subject          string
	Body             string
	Priority         mail.Priority
	// Immediate delivers on the calling goroutine instead of queueing.
	Immediate bool
}

// Dispatcher owns the endpoint registry, the dispatch queue and the result
// ledger. It subscribes to its own queue's outcomes and records them.
type Dispatcher struct {
	endpoints *endpoint.Registry
	queue     *mail.Queue
	results   *ledger.Ledger
	workers   *worker.Registry
	janitor   *worker.Worker
	logger    *zap.SugaredLogger
}

// New wires a dispatcher. Its workers register in workers.
func New(workers *worker.Registry, transport mail.Transport, opts Options, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("dispatcher")
	d := &Dispatcher{
		endpoints: endpoint.NewRegistry(),
		queue:     mail.NewQueue(workers, transport, opts.Queue, logger),
		results:   ledger.New(),
		workers:   workers,
		logger:    logger,
	}
	d.queue.AddResultListener(d)
	if opts.ResultRetention > 0 {
		d.janitor = ledger.NewJanitor(workers, d.results, opts.ResultRetention, opts.PruneInterval, logger)
	}
	return d
}

// Start launches background housekeeping. The dispatch worker itself starts
// on demand when items are queued.
func (d *Dispatcher) Start() {
	if d.janitor != nil && d.janitor.Start(worker.PriorityBelowNormal) {
		d.logger.Infow("Result ledger janitor started")
	}
}

// Queue exposes the dispatch queue, for result and lifecycle listeners.
func (d *Dispatcher) Queue() *mail.Queue {
	return d.queue
}

// RegisterEndpoint validates and registers cfg, returning the id of the new
// or already registered equal endpoint.
func (d *Dispatcher) RegisterEndpoint(cfg endpoint.Config) (int64, error) {
	id, err := d.endpoints.Register(cfg)
	if err != nil {
		d.logger.Debugw("Endpoint rejected", "host", cfg.Host, "error", err)
		return 0, err
	}
	d.logger.Infow("Endpoint registered", "id", id, "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	return id, nil
}

func (d *Dispatcher) RemoveEndpoint(id int64) error {
	if err := d.endpoints.Remove(id); err != nil {
		return err
	}
	d.logger.Infow("Endpoint removed", "id", id)
	return nil
}

// Endpoints lists registered endpoints without their passwords.
func (d *Dispatcher) Endpoints() []endpoint.Config {
	list := d.endpoints.List()
	for i := range list {
		list[i] = list[i].Redacted()
	}
	return list
}

// Send validates req and either delivers it right away or queues it. For a
// queued item the returned code is CodeSuccess meaning accepted; for an
// immediate send it is the outcome status. Validation and lookup failures are
// returned as errors together with their code and never reach the queue.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (mail.Code, error) {
	ep, err := d.endpoints.Get(req.EndpointID)
	if err != nil {
		return mail.CodeInvalidEndpoint, fmt.Errorf("%w: %d", ErrInvalidEndpoint, req.EndpointID)
	}

	item := mail.Item{
		ID:               req.ItemID,
		EndpointID:       ep.ID,
		Endpoint:         ep,
		SenderName:       req.SenderName,
		SenderAddress:    req.SenderAddress,
		RecipientName:    req.RecipientName,
		RecipientAddress: req.RecipientAddress,
		Subject:          req.Subject,
		Body:             req.Body,
		Priority:         req.Priority,
		CreatedAt:        time.Now(),
	}
	if err := mail.ValidateItem(item); err != nil {
		return CodeOf(err), err
	}

	if req.Immediate {
		outcome := d.queue.SendImmediate(ctx, item)
		return outcome.Status, nil
	}
	d.queue.Enqueue(item)
	d.queue.Start(worker.PriorityNormal)
	return mail.CodeSuccess, nil
}

// Result returns the outcome recorded for the item, removing it when erase
// is set.
func (d *Dispatcher) Result(endpointID, itemID int64, erase bool) (mail.Outcome, error) {
	return d.results.Lookup(endpointID, itemID, erase)
}

// QueueCount counts queued and in-flight items of database, dropping them
// when cancelAll is set.
func (d *Dispatcher) QueueCount(database string, cancelAll bool) int {
	return d.queue.Count(database, cancelAll)
}

// QueueCountWait is QueueCount followed by a pause of up to
// MaxQueueCountWait when items remain, so polling callers back off.
func (d *Dispatcher) QueueCountWait(ctx context.Context, database string, cancelAll bool, wait time.Duration) (int, error) {
	n := d.queue.Count(database, cancelAll)
	if n == 0 || wait <= 0 {
		return n, nil
	}
	if wait > MaxQueueCountWait {
		wait = MaxQueueCountWait
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return n, nil
	case <-ctx.Done():
		return n, ctx.Err()
	}
}

// CancelQueued drops every queued item of database.
func (d *Dispatcher) CancelQueued(database string) {
	d.queue.CancelNamespace(database)
}

// Workers describes all registered workers.
func (d *Dispatcher) Workers() []worker.Info {
	return d.workers.Snapshot()
}

// Notify records an outcome of the dispatch queue.
func (d *Dispatcher) Notify(o mail.Outcome) error {
	d.results.Record(o)
	return nil
}

// Shutdown cancels all workers, waits up to timeout for them to stop and
// terminates the rest. It returns the number of terminated workers.
func (d *Dispatcher) Shutdown(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = worker.DefaultTerminateTimeout
	}
	d.logger.Infow("Stopping workers", "timeout", timeout, "queued", d.queue.Depth())
	n := d.workers.TerminateAll(timeout)
	if n > 0 {
		d.logger.Warnw("Workers terminated after shutdown timeout", "count", n)
	}
	return n
}
