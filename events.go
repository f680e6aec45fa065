package bundlez

import "context"

// FileChangeEvent reports that a source file was written, created, removed
// or renamed. Path is relative to the source root and slash separated.
type FileChangeEvent struct {
	Path string
}

// EventSource observes source files and emits change events on a channel.
type EventSource interface {
	// Watch begins observing and returns a channel of change events. The
	// channel is closed when ctx is canceled or an unrecoverable error occurs.
	Watch(ctx context.Context) (<-chan FileChangeEvent, error)
}

// ChannelSource wraps an existing event channel as an EventSource.
// Useful for testing and for hosts that already observe the filesystem.
type ChannelSource struct {
	ch   <-chan FileChangeEvent
	sync bool
}

// NewChannelSource creates a ChannelSource that forwards events from ch
// through an internal goroutine.
func NewChannelSource(ch <-chan FileChangeEvent) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// NewSyncChannelSource creates a ChannelSource that returns ch directly.
// Use with Invalidator.SyncMode for deterministic testing.
func NewSyncChannelSource(ch <-chan FileChangeEvent) *ChannelSource {
	return &ChannelSource{ch: ch, sync: true}
}

// Watch returns a channel that emits events from the wrapped channel.
func (s *ChannelSource) Watch(ctx context.Context) (<-chan FileChangeEvent, error) {
	if s.sync {
		return s.ch, nil
	}

	out := make(chan FileChangeEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-s.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
