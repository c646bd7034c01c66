// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Delivery outcomes ===
	EventOutcomeDelivered EventType = "outcome.delivered"
	EventOutcomeFailed    EventType = "outcome.failed"

	// === Worker lifecycle ===
	EventWorkerStart     EventType = "worker.start"
	EventWorkerRun       EventType = "worker.run"
	EventWorkerStop      EventType = "worker.stop"
	EventWorkerError     EventType = "worker.error"
	EventWorkerCancelled EventType = "worker.cancelled"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	// Worker names the dispatch worker involved, if any.
	Worker     string `json:"worker,omitempty"`
	EndpointID int64  `json:"endpointId,omitempty"`
	ItemID     int64  `json:"itemId,omitempty"`

	// Status, ErrorCode and ErrorText mirror the delivery outcome. For worker
	// errors ErrorText carries the error message.
	Status    string `json:"status,omitempty"`
	ErrorCode int    `json:"errorCode,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	case EventWorkerError:
		return SeverityCritical
	case EventOutcomeFailed, EventWorkerCancelled:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func newEvent(t EventType, at time.Time) *Event {
	if at.IsZero() {
		at = time.Now()
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Severity:  SeverityForEventType(t),
		Timestamp: at,
	}
}

// OutcomeEvent converts a delivery outcome into an audit event.
func OutcomeEvent(o mail.Outcome) *Event {
	t := EventOutcomeFailed
	if o.Succeeded() {
		t = EventOutcomeDelivered
	}
	e := newEvent(t, o.CompletedAt)
	e.EndpointID = o.EndpointID
	e.ItemID = o.ItemID
	e.Status = o.Status.String()
	e.ErrorCode = o.ErrorCode
	e.ErrorText = o.ErrorText
	return e
}

// WorkerEvent converts a worker lifecycle event into an audit event.
func WorkerEvent(we worker.Event) *Event {
	var t EventType
	switch we.Type {
	case worker.EventStart:
		t = EventWorkerStart
	case worker.EventRun:
		t = EventWorkerRun
	case worker.EventStop:
		t = EventWorkerStop
	case worker.EventCancelled:
		t = EventWorkerCancelled
	default:
		t = EventWorkerError
	}
	e := newEvent(t, we.Time)
	e.Worker = we.Worker
	if we.Err != nil {
		e.ErrorText = we.Err.Error()
	}
	return e
}
