package ownerthread

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/loop"
)

type testApp struct {
	name string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(*loop.Loop) (*testApp, error) {
	return &testApp{name: "app"}, nil
}

func stopAndWait(t *testing.T, th *Thread[*testApp]) {
	t.Helper()
	th.Stop()
	require.True(t, th.Wait(2*time.Second), "owner thread did not stop")
}

func TestThread_StartSignalsReady(t *testing.T) {
	th := New(newTestApp, WithLogger(quietLogger()))
	assert.Equal(t, "not started", th.State())
	assert.Nil(t, th.App(), "app must not be visible before readiness")

	require.NoError(t, th.Start())
	require.NoError(t, th.WaitReady(2*time.Second))

	assert.True(t, th.Ready().IsSet())
	assert.Equal(t, "app", th.App().name)
	assert.Equal(t, "running", th.State())

	stopAndWait(t, th)
	assert.Equal(t, "stopped", th.State())
}

func TestThread_StartIsOneShot(t *testing.T) {
	th := New(newTestApp, WithLogger(quietLogger()))
	require.NoError(t, th.Start())
	require.NoError(t, th.WaitReady(2*time.Second))

	err := th.Start()
	require.Error(t, err)
	assert.True(t, failure.IsInvalidState(err))
	assert.Contains(t, err.Error(), "running")

	stopAndWait(t, th)

	err = th.Start()
	assert.True(t, failure.IsInvalidState(err), "start after stop must fail too")
	assert.Contains(t, err.Error(), "stopped")
}

func TestThread_WaitReadyTimesOut(t *testing.T) {
	release := make(chan struct{})
	th := New(newTestApp,
		WithLogger(quietLogger()),
		WithInitHook(func() { <-release }),
	)
	require.NoError(t, th.Start())

	err := th.WaitReady(20 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, failure.IsTimeout(err))

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 20*time.Millisecond, fe.After)

	// the thread keeps booting; readiness still arrives later
	assert.Equal(t, "booting", th.State())
	close(release)
	require.NoError(t, th.WaitReady(2*time.Second))

	stopAndWait(t, th)
}

func TestThread_ZeroTimeoutAgainstSlowInit(t *testing.T) {
	release := make(chan struct{})
	th := New(newTestApp,
		WithLogger(quietLogger()),
		WithInitHook(func() { <-release }),
	)
	require.NoError(t, th.Start())

	err := th.WaitReady(0)
	assert.True(t, failure.IsTimeout(err))

	close(release)
	stopAndWait(t, th)
}

func TestThread_AppFactoryRunsBeforeLoop(t *testing.T) {
	var built atomic.Bool
	th := New(func(l *loop.Loop) (*testApp, error) {
		built.Store(true)
		assert.False(t, l.Running(), "app is built before the loop runs")
		return &testApp{name: "checked"}, nil
	}, WithLogger(quietLogger()))

	require.NoError(t, th.Start())
	require.NoError(t, th.WaitReady(2*time.Second))
	assert.True(t, built.Load())

	stopAndWait(t, th)
}

func TestThread_AppFactoryErrorSurfacesFromWaitReady(t *testing.T) {
	cause := errors.New("no display")
	th := New(func(*loop.Loop) (*testApp, error) {
		return nil, cause
	}, WithLogger(quietLogger()))

	_, err := th.Loop().Enqueue("queued early", func() error { return nil })
	require.NoError(t, err)

	require.NoError(t, th.Start())
	err = th.WaitReady(2 * time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, th.App())

	require.True(t, th.Wait(2*time.Second))
	_, err = th.Loop().Enqueue("late", func() error { return nil })
	assert.True(t, failure.IsLoopClosed(err))
}

func TestThread_RunsQueuedWork(t *testing.T) {
	th := New(newTestApp, WithLogger(quietLogger()))

	ran := make(chan string, 1)
	_, err := th.Loop().Enqueue("before start", func() error {
		ran <- "ok"
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, th.Start())

	select {
	case got := <-ran:
		assert.Equal(t, "ok", got)
	case <-time.After(2 * time.Second):
		t.Fatal("work queued before start never ran")
	}

	stopAndWait(t, th)
}

func TestThread_StopBeforeStart(t *testing.T) {
	th := New(newTestApp, WithLogger(quietLogger()))
	th.Stop()

	assert.Equal(t, "stopped", th.State())
	assert.True(t, th.Wait(time.Millisecond))
	assert.True(t, failure.IsInvalidState(th.Start()))
}

func TestThread_KillAbandonsQueuedWork(t *testing.T) {
	th := New(newTestApp, WithLogger(quietLogger()))
	require.NoError(t, th.Start())
	require.NoError(t, th.WaitReady(2*time.Second))

	release := make(chan struct{})
	_, err := th.Loop().Enqueue("block", func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	abandoned := make(chan error, 1)
	_, err = th.Loop().Submit(loop.Work{
		Label:   "abandoned",
		Fn:      func() error { return nil },
		Abandon: func(err error) { abandoned <- err },
	})
	require.NoError(t, err)

	th.Kill()
	close(release)

	require.True(t, th.Wait(2*time.Second))
	select {
	case err := <-abandoned:
		assert.True(t, failure.IsLoopClosed(err))
	case <-time.After(time.Second):
		t.Fatal("queued work was not abandoned")
	}
}

func TestThreadState_Reached(t *testing.T) {
	ts := newThreadState()

	go func() {
		<-ts.reached(stateBooting)
		assert.True(t, ts.is(stateBooting))
		ts.set(stateRunning)
	}()

	ts.set(stateBooting)
	<-ts.reached(stateRunning)
	assert.True(t, ts.is(stateRunning))
	assert.Equal(t, "running", ts.name())
}

func TestThreadState_CompareAndSwap(t *testing.T) {
	ts := newThreadState()

	assert.True(t, ts.compareAndSwap(stateNotStarted, stateBooting))
	assert.False(t, ts.compareAndSwap(stateNotStarted, stateBooting))
	assert.Equal(t, stateBooting, ts.get())

	ch := ts.reached(stateStopped)
	assert.True(t, ts.compareAndSwap(stateBooting, stateStopped))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber not released by compareAndSwap")
	}
}

func TestThread_TimedOutWaitDoesNotLeakSubscribers(t *testing.T) {
	release := make(chan struct{})
	th := New(newTestApp,
		WithLogger(quietLogger()),
		WithInitHook(func() { <-release }),
	)
	require.NoError(t, th.Start())

	for range 5 {
		assert.False(t, th.Wait(time.Millisecond))
	}
	assert.Zero(t, th.state.pending())

	close(release)
	stopAndWait(t, th)
	assert.Zero(t, th.state.pending())
}

func TestThreadState_ForgetKeepsOtherSubscribers(t *testing.T) {
	ts := newThreadState()
	dropped := ts.reached(stateStopped)
	kept := ts.reached(stateStopped)
	require.Equal(t, 2, ts.pending())

	ts.forget(dropped)
	assert.Equal(t, 1, ts.pending())

	ts.set(stateStopped)
	select {
	case <-kept:
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber not released")
	}
}
