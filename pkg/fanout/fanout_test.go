// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFanout_NotifyOrder(t *testing.T) {
	f := New[int](zap.NewNop().Sugar())
	var got []string
	f.AddFunc(func(v int) error { got = append(got, "a"); return nil })
	f.AddFunc(func(v int) error { got = append(got, "b"); return nil })

	failed := f.Notify(1)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestFanout_FailuresAreIsolated(t *testing.T) {
	f := New[string](nil)
	delivered := 0
	f.AddFunc(func(string) error { return errors.New("boom") })
	f.AddFunc(func(string) error { panic("listener exploded") })
	f.AddFunc(func(string) error { delivered++; return nil })

	assert.NotPanics(t, func() {
		failed := f.Notify("event")
		assert.Equal(t, 2, failed)
	})
	assert.Equal(t, 1, delivered)
}

func TestFanout_RemoveByHandle(t *testing.T) {
	f := New[int](nil)
	calls := map[string]int{}
	h1 := f.AddFunc(func(int) error { calls["first"]++; return nil })
	h2 := f.AddFunc(func(int) error { calls["second"]++; return nil })
	require.NotEqual(t, h1, h2)

	assert.True(t, f.Remove(h1))
	assert.False(t, f.Remove(h1), "second removal must report false")
	assert.False(t, f.Remove(Handle(999)))

	f.Notify(1)
	assert.Equal(t, 0, calls["first"])
	assert.Equal(t, 1, calls["second"])
	assert.Equal(t, 1, f.Len())

	f.Clear()
	assert.Equal(t, 0, f.Len())
}

func TestFanout_ListenerMayRemoveItself(t *testing.T) {
	f := New[int](nil)
	var h Handle
	count := 0
	h = f.AddFunc(func(int) error {
		count++
		f.Remove(h)
		return nil
	})

	f.Notify(1)
	f.Notify(2)
	assert.Equal(t, 1, count)
}

func TestFanout_ConcurrentUse(t *testing.T) {
	f := New[int](nil)
	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := f.AddFunc(func(v int) error {
				mu.Lock()
				total += v
				mu.Unlock()
				return nil
			})
			f.Notify(1)
			f.Remove(h)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, f.Len())
	mu.Lock()
	assert.GreaterOrEqual(t, total, 20)
	mu.Unlock()
}
