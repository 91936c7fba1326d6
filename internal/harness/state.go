package harness

// State is the lifecycle state of a Harness.
type State int

const (
	StateCreated State = iota
	StateStarting
	StateReady
	StateFailed
	StateClosed
)

var stateNames = map[State]string{
	StateCreated:  "created",
	StateStarting: "starting",
	StateReady:    "ready",
	StateFailed:   "failed",
	StateClosed:   "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
