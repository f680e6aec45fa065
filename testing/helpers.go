// Package testing provides test utilities and helpers for bundlez testing.
package testing

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/zoobzio/bundlez"
)

// ErrInjected is returned by a CountingTransform set to fail.
var ErrInjected = errors.New("injected transform failure")

// NewMemSource creates an in-memory source holding files, keyed by web root
// relative path.
func NewMemSource(t *testing.T, files map[string]string) *bundlez.FSSource {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, content := range files {
		WriteFile(t, fs, p, content)
	}
	return bundlez.NewFSSource(fs)
}

// WriteFile creates or replaces one file, creating parent directories. Paths
// are relative, the form a Source uses to address files.
func WriteFile(t *testing.T, fs afero.Fs, p, content string) {
	t.Helper()
	if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", p, err)
	}
	if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
}

// NewMemStore creates an artifact store backed by memory.
func NewMemStore() *bundlez.DiskStore {
	return bundlez.NewDiskStore(afero.NewMemMapFs())
}

// CountingTransform is a pass-through unit that counts its invocations.
// It can be switched to fail or to block until released.
type CountingTransform struct {
	name  string
	kind  bundlez.Kind
	calls atomic.Int64
	fail  atomic.Bool

	mu   sync.Mutex
	gate chan struct{}
}

// NewCountingTransform creates a counting unit with the given name.
func NewCountingTransform(name string, kind bundlez.Kind) *CountingTransform {
	return &CountingTransform{name: name, kind: kind}
}

func (c *CountingTransform) Name() string       { return c.name }
func (c *CountingTransform) Kind() bundlez.Kind { return c.kind }

// Apply counts the call, waits on the gate if one is set, and returns content
// unchanged or ErrInjected.
func (c *CountingTransform) Apply(ctx context.Context, _ *bundlez.CompileContext, _ bundlez.SourceFile, content string) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.fail.Load() {
		return "", ErrInjected
	}
	return content, nil
}

// Calls returns the number of Apply invocations.
func (c *CountingTransform) Calls() int {
	return int(c.calls.Load())
}

// SetFail switches failure injection on or off.
func (c *CountingTransform) SetFail(fail bool) {
	c.fail.Store(fail)
}

// Hold makes subsequent calls block until the returned release is called.
func (c *CountingTransform) Hold() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.gate = gate
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.gate = nil
			c.mu.Unlock()
			close(gate)
		})
	}
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// RequireState fails the test immediately if key is not in the expected state.
func RequireState(t *testing.T, c *bundlez.Compiler, key bundlez.ArtifactKey, expected bundlez.State) {
	t.Helper()
	if got := c.State(key); got != expected {
		t.Fatalf("expected state %s for %s, got %s", expected, key, got)
	}
}

var _ bundlez.Transform = (*CountingTransform)(nil)
