// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/fanout"
	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

// OutcomeSource publishes delivery outcomes, e.g. *mail.Queue.
type OutcomeSource interface {
	AddResultListener(l fanout.Listener[mail.Outcome]) fanout.Handle
}

// WorkerSource publishes worker lifecycle events, e.g. *worker.Worker.
type WorkerSource interface {
	AddListener(l fanout.Listener[worker.Event]) fanout.Handle
}

// Recorder turns outcomes and worker events into audit events and writes
// them to a sink. It is called from the dispatch worker goroutine, so the
// sink should be a QueuedSink.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger.Named("audit-recorder")}
}

// Attach subscribes the recorder to a queue's outcomes and to any number of
// workers' lifecycle events.
func (r *Recorder) Attach(outcomes OutcomeSource, workers ...WorkerSource) {
	if outcomes != nil {
		outcomes.AddResultListener(fanout.ListenerFunc[mail.Outcome](r.RecordOutcome))
	}
	for _, w := range workers {
		w.AddListener(fanout.ListenerFunc[worker.Event](r.RecordWorkerEvent))
	}
}

func (r *Recorder) RecordOutcome(o mail.Outcome) error {
	return r.write(OutcomeEvent(o))
}

func (r *Recorder) RecordWorkerEvent(e worker.Event) error {
	return r.write(WorkerEvent(e))
}

func (r *Recorder) write(event *Event) error {
	if err := r.sink.Write(context.Background(), event); err != nil {
		r.logger.Warn("failed to record audit event",
			zap.String("event_type", string(event.Type)),
			zap.String("error", err.Error()))
		return err
	}
	return nil
}

// Health reports the backlog of the queued sinks behind the recorder and
// whether all of them keep up.
func (r *Recorder) Health() ([]QueuedSinkHealth, bool) {
	var sinks []QueuedSinkHealth
	switch s := r.sink.(type) {
	case *QueuedSink:
		sinks = []QueuedSinkHealth{s.Health()}
	case *MultiSink:
		sinks = s.Health()
	}
	healthy := true
	for _, h := range sinks {
		healthy = healthy && h.Healthy
	}
	return sinks, healthy
}

// Close flushes and closes the sink.
func (r *Recorder) Close() error {
	return r.sink.Close()
}
