package bundlez

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// DefaultDebounce is the default window for coalescing file changes.
const DefaultDebounce = 100 * time.Millisecond

// Invalidator deletes cached artifacts when their source files change.
//
// For every bundle containing a changed file, and for each namespace (debug
// and production) with FileWatch enabled, all compression variants under the
// namespace's current token are deleted. Composite artifacts containing the
// file are deleted as well.
type Invalidator struct {
	compiler *Compiler
	debounce time.Duration
	syncMode bool
	clock    clockz.Clock

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive events
	events <-chan FileChangeEvent
}

// NewInvalidator creates an Invalidator for the artifacts of compiler.
func NewInvalidator(compiler *Compiler) *Invalidator {
	return &Invalidator{
		compiler: compiler,
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
	}
}

// Debounce sets the window in which repeated changes are coalesced into one
// invalidation per file. Must be called before Start.
func (v *Invalidator) Debounce(d time.Duration) *Invalidator {
	v.debounce = d
	return v
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
func (v *Invalidator) Clock(clock clockz.Clock) *Invalidator {
	v.clock = clock
	return v
}

// SyncMode enables synchronous processing for testing. Events are handled
// only when Process is called, without debouncing.
func (v *Invalidator) SyncMode() *Invalidator {
	v.syncMode = true
	return v
}

// Start begins consuming events from src. It returns once the source is
// watching; events are then handled asynchronously until ctx is canceled or
// the source closes its channel.
//
// Start can only be called once. Subsequent calls return an error.
func (v *Invalidator) Start(ctx context.Context, src EventSource) error {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return fmt.Errorf("invalidator already started")
	}
	v.started = true
	v.mu.Unlock()

	events, err := src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event source: %w", err)
	}

	capitan.Emit(ctx, InvalidatorStarted, KeyDuration.Field(v.debounce))

	if v.syncMode {
		v.events = events
		return nil
	}

	go v.watch(ctx, events)
	return nil
}

// Process handles the next pending event. This is only available in sync
// mode and is used for deterministic testing.
// Returns false if no event is available or the channel is closed.
func (v *Invalidator) Process(ctx context.Context) bool {
	if !v.syncMode {
		return false
	}

	select {
	case ev, ok := <-v.events:
		if !ok {
			return false
		}
		_ = v.Invalidate(ctx, ev) //nolint:errcheck // Failures are emitted as signals
		return true
	default:
		return false
	}
}

// Invalidate deletes every artifact built from ev.Path. It keeps going past
// individual delete failures and returns them joined.
func (v *Invalidator) Invalidate(ctx context.Context, ev FileChangeEvent) error {
	capitan.Emit(ctx, FileChanged, KeyPath.Field(ev.Path))

	var errs []error
	for _, key := range v.keys(ev.Path) {
		if err := v.delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	for _, key := range v.compiler.composites.take(ev.Path) {
		if err := v.delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// keys lists the artifact keys of every watched namespace of every bundle
// containing path.
func (v *Invalidator) keys(path string) []ArtifactKey {
	c := v.compiler
	var keys []ArtifactKey
	for _, name := range c.registry.BundlesForFile(path) {
		b, ok := c.registry.Get(name)
		if !ok {
			continue
		}
		for _, debug := range []bool{true, false} {
			env := b.Env(debug)
			if !env.FileWatch {
				continue
			}
			buster, err := c.resolver.Resolve(env.CacheBuster)
			if err != nil {
				continue
			}
			for _, comp := range Compressions {
				keys = append(keys, ArtifactKey{
					Name:        b.Name,
					Token:       buster.Value(),
					Compression: comp,
					Debug:       debug,
				})
			}
		}
	}
	return keys
}

// delete removes one artifact. The key lock keeps a delete from interleaving
// with a compile of the same key.
func (v *Invalidator) delete(ctx context.Context, key ArtifactKey) error {
	c := v.compiler
	unlock, err := c.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.store.Delete(ctx, key); err != nil {
		capitan.Emit(ctx, InvalidationFailed,
			KeyArtifact.Field(key.Path()),
			KeyError.Field(err.Error()),
		)
		return err
	}

	c.transition(ctx, key, StateMissing)
	capitan.Emit(ctx, ArtifactInvalidated, KeyArtifact.Field(key.Path()))
	if c.metrics != nil {
		c.metrics.OnInvalidate(key)
	}
	return nil
}

// watch handles events with debouncing. Changes to the same file within the
// debounce window are invalidated once.
func (v *Invalidator) watch(ctx context.Context, events <-chan FileChangeEvent) {
	defer capitan.Emit(ctx, InvalidatorStopped)

	var (
		timer   clockz.Timer
		pending []FileChangeEvent
		seen    = make(map[string]bool)
	)

	flush := func() {
		for _, ev := range pending {
			_ = v.Invalidate(ctx, ev) //nolint:errcheck // Failures are emitted as signals
		}
		pending = nil
		clear(seen)
	}

	for {
		// Get timer channel or nil if no timer
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-events:
			if !ok {
				// Channel closed, process any pending changes
				flush()
				return
			}

			if !seen[ev.Path] {
				seen[ev.Path] = true
				pending = append(pending, ev)
			}

			// Reset or start debounce timer
			if timer == nil {
				timer = v.clock.NewTimer(v.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(v.debounce)
			}

		case <-timerC:
			flush()
		}
	}
}
