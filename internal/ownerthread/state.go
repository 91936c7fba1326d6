package ownerthread

import (
	"slices"
	"sync"
)

type stateID int

const (
	stateNotStarted stateID = iota
	stateBooting
	stateRunning
	stateStopping
	stateStopped
)

var stateNames = map[stateID]string{
	stateNotStarted: "not started",
	stateBooting:    "booting",
	stateRunning:    "running",
	stateStopping:   "stopping",
	stateStopped:    "stopped",
}

// threadState is the lifecycle of an owner thread.
// Waiters subscribe to a set of states and are released, exactly once,
// when the thread reaches any of them.
type threadState struct {
	currentState stateID
	mu           sync.RWMutex
	subscribers  []stateSubscriber
}

type stateSubscriber struct {
	states []stateID
	ch     chan struct{}
}

func newThreadState() *threadState {
	return &threadState{
		currentState: stateNotStarted,
		subscribers:  []stateSubscriber{},
	}
}

func (ts *threadState) is(state stateID) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.currentState == state
}

func (ts *threadState) get() stateID {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.currentState
}

func (ts *threadState) name() string {
	return stateNames[ts.get()]
}

func (ts *threadState) compareAndSwap(compareTo stateID, swapTo stateID) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.currentState != compareTo {
		return false
	}
	ts.setLocked(swapTo)
	return true
}

func (ts *threadState) set(nextState stateID) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.setLocked(nextState)
}

func (ts *threadState) setLocked(nextState stateID) {
	ts.currentState = nextState

	if len(ts.subscribers) == 0 {
		return
	}

	remaining := []stateSubscriber{}
	// notify subscribers to the state change
	for _, sub := range ts.subscribers {
		if !slices.Contains(sub.states, nextState) {
			remaining = append(remaining, sub)
			continue
		}
		close(sub.ch)
	}
	ts.subscribers = remaining
}

// reached returns a channel closed once the thread is in one of states.
// The channel is already closed if it is in one of them now.
func (ts *threadState) reached(states ...stateID) <-chan struct{} {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ch := make(chan struct{})
	if slices.Contains(states, ts.currentState) {
		close(ch)
		return ch
	}
	ts.subscribers = append(ts.subscribers, stateSubscriber{states: states, ch: ch})
	return ch
}

// forget drops the subscription that returned ch, if it is still pending.
func (ts *threadState) forget(ch <-chan struct{}) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.subscribers = slices.DeleteFunc(ts.subscribers, func(sub stateSubscriber) bool {
		return sub.ch == ch
	})
}

func (ts *threadState) pending() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.subscribers)
}
