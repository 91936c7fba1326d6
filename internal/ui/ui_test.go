package ui

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
)

// manualDispatcher queues work and runs it only when drained.
type manualDispatcher struct {
	queue  []func() error
	closed bool
}

func (d *manualDispatcher) Enqueue(_ string, fn func() error) (int64, error) {
	if d.closed {
		return 0, errors.New("closed")
	}
	d.queue = append(d.queue, fn)
	return int64(len(d.queue)), nil
}

func (d *manualDispatcher) drain(t *testing.T) {
	t.Helper()
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue = d.queue[1:]
		require.NoError(t, fn())
	}
}

func newTestApp() (*Application, *manualDispatcher) {
	d := &manualDispatcher{}
	return NewApplication(d, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))), d
}

// buildTree returns window > control > panel > {label button, testButton}.
func buildTree(app *Application) (*Window, *UserControl, *Button) {
	w := NewWindow(app, "main")
	uc := NewUserControl(app, "control")
	panel := NewPanel(app, "stack")
	target := NewButton(app, "testButton", "Verify")
	panel.Add(NewButton(app, "other", "Other"), target)
	uc.SetContent(panel)
	w.SetContent(uc)
	return w, uc, target
}

func TestReadyEvent_OneShot(t *testing.T) {
	e := NewReadyEvent()
	assert.False(t, e.IsReady())

	var calls int
	e.OnReady(func() { calls++ })

	assert.True(t, e.Raise())
	assert.False(t, e.Raise())
	assert.True(t, e.IsReady())
	assert.Equal(t, 1, calls)

	// late subscribers run immediately
	e.OnReady(func() { calls++ })
	assert.Equal(t, 2, calls)

	select {
	case <-e.Done():
	default:
		t.Fatal("Done not closed after Raise")
	}
	assert.NoError(t, e.Wait(context.Background()))
	assert.True(t, e.WaitTimeout(0))
}

func TestReadyEvent_WaitAcrossGoroutines(t *testing.T) {
	e := NewReadyEvent()

	assert.False(t, e.WaitTimeout(5*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, e.WaitTimeout(2*time.Second))
		}()
	}
	e.Raise()
	wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, e.Wait(ctx), "already raised wins over a done context")
}

func TestReadyEvent_WaitContext(t *testing.T) {
	e := NewReadyEvent()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Wait(ctx), context.DeadlineExceeded)
}

func TestWindow_ShowLoadsTreeOnNextLoopTurn(t *testing.T) {
	app, d := newTestApp()
	w, uc, target := buildTree(app)

	require.NoError(t, w.Show())
	assert.True(t, w.IsShown())
	assert.False(t, uc.IsLoaded(), "load pass runs after the current item")

	d.drain(t)

	Walk(w, func(n Node, _ int) bool {
		assert.True(t, n.Loaded().IsReady(), "%q not loaded", n.Name())
		return true
	})
	assert.True(t, target.IsLoaded())

	require.NoError(t, w.Show())
	assert.Empty(t, d.queue, "second Show is a no-op")
}

func TestWindow_NodesAddedAfterLoadAreLoaded(t *testing.T) {
	app, d := newTestApp()
	w, uc, _ := buildTree(app)
	require.NoError(t, w.Show())
	d.drain(t)

	panel, ok := uc.Content().(*Panel)
	require.True(t, ok)

	late := NewButton(app, "late", "Late")
	panel.Add(late)
	assert.True(t, late.IsLoaded())
	assert.Same(t, panel, late.Parent())
}

func TestWindow_ShowRejectedAfterShutdown(t *testing.T) {
	app, _ := newTestApp()
	w := NewWindow(app, "main")
	app.Shutdown()

	assert.Error(t, w.Show())
	assert.Nil(t, app.MainWindow())
}

func TestWindow_ShowFailsWhenDispatcherClosed(t *testing.T) {
	app, d := newTestApp()
	d.closed = true
	w := NewWindow(app, "main")

	assert.Error(t, w.Show())
	assert.False(t, w.IsShown())
}

func TestWindow_Close(t *testing.T) {
	app, _ := newTestApp()
	w1 := NewWindow(app, "one")
	w2 := NewWindow(app, "two")
	assert.Same(t, w1, app.MainWindow())

	w1.Close()
	assert.Equal(t, []*Window{w2}, app.Windows())
}

func TestFindChild(t *testing.T) {
	app, _ := newTestApp()
	w, uc, target := buildTree(app)

	got, ok := FindChild[*Button](uc, "testButton")
	require.True(t, ok)
	assert.Same(t, target, got)

	first, ok := FindChild[*Button](w, "")
	require.True(t, ok)
	assert.Equal(t, "other", first.Name(), "empty name returns the first button")

	panel, ok := FindChild[*Panel](w, "stack")
	require.True(t, ok)
	assert.Len(t, panel.Children(), 2)

	_, ok = FindChild[*Button](uc, "missing")
	assert.False(t, ok)

	_, ok = FindChild[*Window](w, "")
	assert.False(t, ok, "root is not a candidate")

	_, ok = FindChild[*Button](nil, "testButton")
	assert.False(t, ok)
}

func TestFindChild_NormalizesNames(t *testing.T) {
	app, _ := newTestApp()
	panel := NewPanel(app, "root")
	cafe := NewButton(app, "Cafe\u0301", "")
	panel.Add(cafe)

	got, ok := FindChild[*Button](panel, "Caf\u00e9")
	require.True(t, ok)
	assert.Same(t, cafe, got)
}

func TestPanel_Remove(t *testing.T) {
	app, _ := newTestApp()
	panel := NewPanel(app, "p")
	b := NewButton(app, "b", "")
	panel.Add(b, nil)

	assert.Len(t, panel.Children(), 1)
	assert.True(t, panel.Remove(b))
	assert.False(t, panel.Remove(b))
	assert.Nil(t, b.Parent())
}

func TestVerifier_DrivesEnablement(t *testing.T) {
	app, _ := newTestApp()
	b := NewButton(app, "testButton", "Verify")
	assert.True(t, b.IsEnabled())
	assert.Nil(t, GetVerifier(b))

	v := &Verifier{Name: "default"}
	require.NoError(t, SetVerifier(b, v))
	assert.True(t, b.IsEnabled())
	assert.Same(t, v, GetVerifier(b))

	require.NoError(t, SetVerifier(b, nil))
	assert.False(t, b.IsEnabled())
	assert.True(t, app.Attached().Has(b, VerifierProperty), "nil is stored explicitly")

	require.NoError(t, SetVerifier(b, &Verifier{}))
	assert.True(t, b.IsEnabled())

	ClearVerifier(b)
	assert.False(t, b.IsEnabled())
	assert.Nil(t, GetVerifier(b))
}

func TestVerifier_NonButtonTargets(t *testing.T) {
	app, _ := newTestApp()
	panel := NewPanel(app, "p")

	require.NoError(t, SetVerifier(panel, &Verifier{}))
	assert.NotNil(t, GetVerifier(panel))

	var detached Button
	assert.Error(t, SetVerifier(&detached, &Verifier{}))
	assert.Nil(t, GetVerifier(&detached))
}

func TestButton_Click(t *testing.T) {
	app, _ := newTestApp()
	b := NewButton(app, "b", "Go")

	assert.True(t, b.Click())
	b.SetEnabled(false)
	assert.False(t, b.Click())
	assert.Equal(t, 1, b.Clicks())
	assert.Equal(t, "Go", b.Label())
}

func TestApplication_Resources(t *testing.T) {
	app, _ := newTestApp()
	_, ok := app.Resource("theme")
	assert.False(t, ok)

	app.SetResource("theme", "dark")
	v, ok := app.Resource("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestApplication_ShutdownResetsAttachedStore(t *testing.T) {
	app, _ := newTestApp()
	b := NewButton(app, "b", "")
	require.NoError(t, SetVerifier(b, &Verifier{}))
	require.Equal(t, 1, app.Attached().Len())

	app.Shutdown()
	app.Shutdown()
	assert.True(t, app.IsShutdown())
	assert.Equal(t, 0, app.Attached().Len())
}
