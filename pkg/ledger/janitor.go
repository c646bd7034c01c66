// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/worker"
)

// JanitorName is the worker name of the pruning worker.
const JanitorName = "result ledger janitor"

// NewJanitor returns a worker that prunes outcomes older than retention every
// interval. The worker is not started.
func NewJanitor(registry *worker.Registry, l *Ledger, retention, interval time.Duration, log *zap.SugaredLogger) *worker.Worker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts := worker.DefaultOptions(JanitorName)
	if interval > 0 {
		opts.Interval = interval
	}
	prune := worker.RunnerFunc(func(context.Context) (bool, error) {
		if removed := l.Prune(time.Now().Add(-retention)); removed > 0 {
			log.Infow("Pruned uncollected outcomes", "count", removed, "retention", retention)
		}
		return true, nil
	})
	return worker.New(registry, prune, opts, log)
}
