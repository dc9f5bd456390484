package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutGetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m := NewMemory()
	m.SetClock(func() time.Time { return now })

	require.NoError(t, m.Put(ctx, "printers:scan:a", []byte(`{"status":"queued"}`), time.Hour))

	v, ok, err := m.Get(ctx, "printers:scan:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"queued"}`, string(v))

	now = now.Add(time.Hour)
	_, ok, err = m.Get(ctx, "printers:scan:a")
	require.NoError(t, err)
	assert.False(t, ok, "expired after ttl")
}

func TestMemoryUpdateRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m := NewMemory()
	m.SetClock(func() time.Time { return now })

	_, err := Increment(ctx, m, "c", 1, 30*time.Minute)
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	n, err := Increment(ctx, m, "c", 1, 30*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	now = now.Add(20 * time.Minute)
	_, ok, _ := m.Get(ctx, "c")
	assert.True(t, ok, "ttl renewed by the second increment")
}

func TestIncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Increment(ctx, m, "counter", 1, time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := Increment(ctx, m, "counter", -1, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 49, n)
}

func TestIncrementRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "c", []byte("abc"), 0))

	_, err := Increment(ctx, m, "c", 1, 0)
	assert.Error(t, err)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Delete(ctx, "k"))

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
