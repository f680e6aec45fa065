package bundlez

// State is the compile state of one artifact key.
type State int32

const (
	// StateMissing means no artifact is cached for the key.
	StateMissing State = iota

	// StateCompiling means one caller holds the key's lock and is compiling.
	StateCompiling

	// StateReady means the artifact is cached and served as is.
	StateReady

	// StateFailed means the last compile failed. Nothing was cached, so the
	// key immediately falls back to missing and the next request retries.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateCompiling:
		return "compiling"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
