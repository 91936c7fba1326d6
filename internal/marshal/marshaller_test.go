package marshal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/loop"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runningLoop starts a loop and registers its teardown.
func runningLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New(loop.WithLogger(quietLogger()))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(context.Background())
	}()
	t.Cleanup(func() {
		l.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("loop did not stop")
		}
	})
	return l
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPost_RunsActionOnLoop(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	ran := false
	c := m.Post("set flag", func() error {
		ran = true
		return nil
	})

	require.NoError(t, c.Wait(waitCtx(t)))
	assert.True(t, ran)
	assert.True(t, c.Completed())
	assert.Equal(t, int64(1), c.Seq())
}

// inlinePoster runs work during Submit, so the completion resolves before
// Submit returns.
type inlinePoster struct {
	seq int64
}

func (p *inlinePoster) Submit(w loop.Work) (int64, error) {
	p.seq++
	w.Seq = p.seq
	if w.Stamped != nil {
		w.Stamped(w.Seq)
	}
	_ = w.Fn()
	return w.Seq, nil
}

func TestPost_SeqSetBeforeResolve(t *testing.T) {
	m := New(&inlinePoster{seq: 6}, WithLogger(quietLogger()))

	c := m.Post("fast", func() error { return nil })
	require.True(t, c.Completed())
	assert.Equal(t, int64(7), c.Seq())

	f := Query(m, "fast query", func() (string, error) { return "v", nil })
	v, err := f.Get(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, int64(8), f.Seq())
}

func TestPost_SeqVisibleAfterWaitOnRealLoop(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	var last int64
	for range 200 {
		c := m.Post("tick", func() error { return nil })
		require.NoError(t, c.Wait(waitCtx(t)))
		require.Greater(t, c.Seq(), last)
		last = c.Seq()
	}
}

func TestPost_PreservesErrorIdentity(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	cause := errors.New("verifier rejected")
	err := m.Post("fail", func() error { return cause }).Wait(waitCtx(t))

	assert.Same(t, cause, err)
}

func TestPost_PanicBecomesPanicError(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	err := m.Post("explode", func() error { panic("tree corrupted") }).Wait(waitCtx(t))
	require.Error(t, err)

	var pe *failure.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "explode", pe.Label)
	assert.Equal(t, "tree corrupted", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	// the loop keeps serving
	require.NoError(t, m.Post("after", func() error { return nil }).Wait(waitCtx(t)))
}

func TestQuery_ReturnsValue(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	got, err := Query(m, "answer", func() (int, error) { return 42, nil }).Get(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestQuery_FailureDoesNotPoisonLoop(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	cause := errors.New("not found")
	_, err := Query(m, "missing", func() (string, error) { return "partial", cause }).Get(waitCtx(t))
	assert.ErrorIs(t, err, cause)

	got, err := Query(m, "present", func() (string, error) { return "button", nil }).Get(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "button", got)
}

func TestQuery_ConcurrentCallersNeverSeeZeroValue(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))
	ctx := waitCtx(t)

	const callers = 16
	const perCaller = 25

	var wg sync.WaitGroup
	errs := make(chan error, callers*perCaller)
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= perCaller; i++ {
				want := c*1000 + i
				got, err := Query(m, "echo", func() (int, error) { return want, nil }).Get(ctx)
				if err != nil {
					errs <- err
					continue
				}
				if got != want {
					errs <- errors.New("query returned a value it did not produce")
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestPost_PerCallerFIFO(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	const callers = 4
	const perCaller = 50

	var mu sync.Mutex
	seen := map[int][]int{}

	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last *Completion
			for i := 0; i < perCaller; i++ {
				last = m.Post("record", func() error {
					mu.Lock()
					seen[c] = append(seen[c], i)
					mu.Unlock()
					return nil
				})
			}
			assert.NoError(t, last.Wait(context.Background()))
		}()
	}
	wg.Wait()

	for c := 0; c < callers; c++ {
		require.Len(t, seen[c], perCaller)
		for i, v := range seen[c] {
			assert.Equal(t, i, v, "caller %d ran out of order", c)
		}
	}
}

func TestPost_ClosedLoop(t *testing.T) {
	l := loop.New(loop.WithLogger(quietLogger()))
	l.Stop()
	m := New(l, WithLogger(quietLogger()))

	c := m.Post("late", func() error { return nil })
	assert.True(t, c.Completed(), "rejected work resolves immediately")
	assert.True(t, failure.IsLoopClosed(c.Err()))
	assert.Equal(t, int64(0), c.Seq())

	_, err := Query(m, "late", func() (int, error) { return 1, nil }).Get(context.Background())
	assert.True(t, failure.IsLoopClosed(err))
}

func TestPost_AbandonedWorkResolves(t *testing.T) {
	l := loop.New(loop.WithLogger(quietLogger()))
	m := New(l, WithLogger(quietLogger()))

	c := m.Post("never runs", func() error {
		t.Error("abandoned action ran")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.Run(ctx)

	assert.True(t, failure.IsLoopClosed(c.Wait(context.Background())))
}

func TestCompletion_WaitHonoursContext(t *testing.T) {
	m := New(runningLoop(t), WithLogger(quietLogger()))

	release := make(chan struct{})
	c := m.Post("block", func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
	assert.False(t, c.Completed())
	assert.NoError(t, c.Err(), "Err is nil until completion")

	// the work was not retracted
	close(release)
	require.NoError(t, c.Wait(waitCtx(t)))
}
