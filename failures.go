package bundlez

import (
	"slices"
	"sync"
	"time"
)

// CompileFailure describes one failed compile.
type CompileFailure struct {
	Key ArtifactKey
	// Stage is "transform", "compress" or "store".
	Stage string
	At    time.Time
	Err   error
}

// failureLog keeps the most recent compile failures up to a limit. A nil log
// records nothing.
type failureLog struct {
	mu      sync.Mutex
	limit   int
	entries []CompileFailure
}

func newFailureLog(limit int) *failureLog {
	if limit <= 0 {
		return nil
	}
	return &failureLog{limit: limit, entries: make([]CompileFailure, 0, limit)}
}

// record appends f, evicting the oldest failure when full.
func (l *failureLog) record(f CompileFailure) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, f)
}

// snapshot returns the retained failures, oldest first.
func (l *failureLog) snapshot() []CompileFailure {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return slices.Clone(l.entries)
}
