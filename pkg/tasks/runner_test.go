package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type retryLater time.Duration

func (e retryLater) Error() string             { return "retry later" }
func (e retryLater) RetryAfter() time.Duration { return time.Duration(e) }

func TestRunnerBoundsConcurrency(t *testing.T) {
	r := NewRunner(context.Background(), 2, zerolog.Nop())

	var (
		running, peak atomic.Int32
		done          atomic.Int32
	)

	for i := range 8 {
		r.Submit(fmt.Sprintf("task-%d", i), func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			done.Add(1)
			return nil
		})
	}

	r.Wait()
	assert.Equal(t, int32(8), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunnerRetriesDeferredTasks(t *testing.T) {
	r := NewRunner(context.Background(), 1, zerolog.Nop())

	var calls atomic.Int32
	r.Submit("revalidate 1", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return fmt.Errorf("subnet busy: %w", retryLater(time.Millisecond))
		}
		return nil
	})

	r.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunnerMaxAttempts(t *testing.T) {
	r := NewRunner(context.Background(), 1, zerolog.Nop()).WithMaxAttempts(2)

	var calls atomic.Int32
	r.Submit("always busy", func(ctx context.Context) error {
		calls.Add(1)
		return retryLater(time.Millisecond)
	})

	r.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunnerPlainErrorsAreNotRetried(t *testing.T) {
	r := NewRunner(context.Background(), 1, zerolog.Nop())

	var calls atomic.Int32
	r.Submit("broken", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	})

	r.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunnerCancelDropsDeferred(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx, 1, zerolog.Nop())

	var once sync.Once
	var calls atomic.Int32
	r.Submit("deferred", func(ctx context.Context) error {
		calls.Add(1)
		once.Do(cancel)
		return retryLater(time.Hour)
	})

	r.Wait()
	assert.Equal(t, int32(1), calls.Load())

	r.Submit("after stop", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	r.Wait()
	assert.Equal(t, int32(1), calls.Load())
}
