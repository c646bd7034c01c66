// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

// Package ledger stores delivery outcomes until the caller collects them.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/metrics"
)

// ErrNotFound is returned when no outcome is stored for an item.
var ErrNotFound = errors.New("outcome not found")

type key struct {
	endpointID int64
	itemID     int64
}

// Ledger maps (endpoint id, item id) to the latest outcome for that pair.
type Ledger struct {
	mu       sync.Mutex
	outcomes map[key]mail.Outcome
}

func New() *Ledger {
	return &Ledger{outcomes: make(map[key]mail.Outcome)}
}

// Record stores o, replacing an earlier outcome for the same pair.
func (l *Ledger) Record(o mail.Outcome) {
	l.mu.Lock()
	l.outcomes[key{o.EndpointID, o.ItemID}] = o
	n := len(l.outcomes)
	l.mu.Unlock()
	metrics.ResultsStored.Set(float64(n))
}

// Notify records o. It lets the ledger subscribe to a queue's results directly.
func (l *Ledger) Notify(o mail.Outcome) error {
	l.Record(o)
	return nil
}

// Lookup returns the outcome for the pair, removing it when erase is set.
func (l *Ledger) Lookup(endpointID, itemID int64, erase bool) (mail.Outcome, error) {
	l.mu.Lock()
	k := key{endpointID, itemID}
	o, ok := l.outcomes[k]
	if ok && erase {
		delete(l.outcomes, k)
	}
	n := len(l.outcomes)
	l.mu.Unlock()
	if !ok {
		return mail.Outcome{}, ErrNotFound
	}
	metrics.ResultsStored.Set(float64(n))
	return o, nil
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outcomes)
}

// Prune removes outcomes completed before cutoff and returns how many were
// removed.
func (l *Ledger) Prune(cutoff time.Time) int {
	l.mu.Lock()
	removed := 0
	for k, o := range l.outcomes {
		if o.CompletedAt.Before(cutoff) {
			delete(l.outcomes, k)
			removed++
		}
	}
	n := len(l.outcomes)
	l.mu.Unlock()
	metrics.ResultsStored.Set(float64(n))
	return removed
}
