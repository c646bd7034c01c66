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

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueuedSinkDeliversInOrder(t *testing.T) {
	inner := newMemorySink("memory")
	qs := NewQueuedSink(inner, QueuedSinkConfig{QueueSize: 10}, zap.NewNop())

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, qs.Write(context.Background(), &Event{ID: "e", ItemID: i}))
	}
	require.NoError(t, qs.Close())

	events := inner.Events()
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.ItemID)
	}
	assert.True(t, inner.closed)
	assert.Equal(t, int64(5), qs.Health().ProcessedEvents)
}

func TestQueuedSinkDropsWhenFull(t *testing.T) {
	inner := newMemorySink("slow")
	inner.block = make(chan struct{})
	qs := NewQueuedSink(inner, QueuedSinkConfig{QueueSize: 2}, zap.NewNop())

	// The first event is taken by the worker and blocks there.
	require.NoError(t, qs.Write(context.Background(), &Event{ID: "first"}))
	select {
	case <-inner.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up the first event")
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, qs.Write(context.Background(), &Event{ID: "more"}))
	}

	health := qs.Health()
	assert.Equal(t, 2, health.QueueLength)
	assert.Equal(t, int64(3), health.DroppedEvents)
	assert.False(t, health.Healthy)

	close(inner.block)
	require.NoError(t, qs.Close())
	assert.Len(t, inner.Events(), 3)
}

func TestQueuedSinkTracksFailures(t *testing.T) {
	inner := newMemorySink("broken")
	inner.fail = true
	qs := NewQueuedSink(inner, DefaultQueuedSinkConfig(), zap.NewNop())

	require.NoError(t, qs.Write(context.Background(), &Event{ID: "x"}))
	require.NoError(t, qs.Close())

	health := qs.Health()
	assert.Equal(t, int64(1), health.FailedEvents)
	assert.Equal(t, "sink unavailable", health.LastError)
	assert.False(t, health.LastErrorTime.IsZero())
}

func TestQueuedSinkWriteAfterClose(t *testing.T) {
	qs := NewQueuedSink(newMemorySink("memory"), DefaultQueuedSinkConfig(), zap.NewNop())
	require.NoError(t, qs.Close())
	require.NoError(t, qs.Close(), "close is idempotent")

	assert.Error(t, qs.Write(context.Background(), &Event{ID: "late"}))
	assert.Equal(t, "memory", qs.Name())
}
