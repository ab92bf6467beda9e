package dataset

// State is the iteration state of a Dataset.
type State int

const (
	// StateIdle means no iteration is in progress.
	StateIdle State = iota
	// StateIterating means an iterator returned by Iterate is live.
	StateIterating
	// StateExhausted means the last iteration ran to its end.
	StateExhausted
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateIterating:
		return "Iterating"
	case StateExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}
