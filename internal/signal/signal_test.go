package signal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_StartsUnset(t *testing.T) {
	s := New()

	assert.False(t, s.IsSet())
	assert.False(t, s.Wait(10*time.Millisecond), "wait on unset signal should time out")
}

func TestSignal_SetWakesWaiter(t *testing.T) {
	s := New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Set()
	}()

	assert.True(t, s.Wait(time.Second))
	assert.True(t, s.IsSet())
}

func TestSignal_SetBeforeWait(t *testing.T) {
	s := New()
	s.Set()

	assert.True(t, s.Wait(time.Millisecond))
	assert.True(t, s.Wait(0), "zero timeout reports current state")
	s.WaitForever()
}

func TestSignal_ZeroTimeoutDoesNotBlock(t *testing.T) {
	s := New()

	start := time.Now()
	assert.False(t, s.Wait(0))
	assert.False(t, s.Wait(-time.Second))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSignal_SetIsIdempotent(t *testing.T) {
	s := New()

	assert.NotPanics(t, func() {
		s.Set()
		s.Set()
	})
	assert.True(t, s.IsSet())
}

func TestSignal_ReleasesAllWaiters(t *testing.T) {
	s := New()

	const waiters = 20
	var wg sync.WaitGroup
	results := make(chan bool, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Wait(time.Second)
		}()
	}

	s.Set()
	wg.Wait()
	close(results)

	for ok := range results {
		assert.True(t, ok)
	}
}

func TestSignal_WaitContext(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		s := New()
		s.Set()
		require.NoError(t, s.WaitContext(context.Background()))
	})

	t.Run("cancelled", func(t *testing.T) {
		s := New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := s.WaitContext(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSignal_DoneChannel(t *testing.T) {
	s := New()

	select {
	case <-s.Done():
		t.Fatal("done channel closed before Set")
	default:
	}

	s.Set()

	select {
	case <-s.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("done channel not closed after Set")
	}
}
