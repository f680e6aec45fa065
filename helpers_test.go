package bundlez

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"
)

var errInjected = errors.New("injected failure")

func writeFile(t *testing.T, fs afero.Fs, p, content string) {
	t.Helper()
	if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", p, err)
	}
	if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
}

func memSource(t *testing.T, files map[string]string) (*FSSource, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, content := range files {
		writeFile(t, fs, p, content)
	}
	return NewFSSource(fs), fs
}

// countingUnit passes content through, counting calls. It can fail or block.
type countingUnit struct {
	name  string
	kind  Kind
	calls atomic.Int64
	fail  atomic.Bool

	mu   sync.Mutex
	gate chan struct{}
}

func newCountingUnit(name string) *countingUnit {
	return &countingUnit{name: name, kind: KindCustom}
}

func (u *countingUnit) Name() string { return u.name }
func (u *countingUnit) Kind() Kind   { return u.kind }

func (u *countingUnit) Apply(ctx context.Context, _ *CompileContext, _ SourceFile, content string) (string, error) {
	u.calls.Add(1)
	u.mu.Lock()
	gate := u.gate
	u.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if u.fail.Load() {
		return "", errInjected
	}
	return content, nil
}

func (u *countingUnit) hold() func() {
	gate := make(chan struct{})
	u.mu.Lock()
	u.gate = gate
	u.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			u.mu.Lock()
			u.gate = nil
			u.mu.Unlock()
			close(gate)
		})
	}
}

// env is a registry, compiler and store over in-memory filesystems.
type env struct {
	fs       afero.Fs
	source   *FSSource
	store    *DiskStore
	storeFs  afero.Fs
	resolver *Resolver
	registry *Registry
	factory  *Factory
	compiler *Compiler
	unit     *countingUnit
	clock    *clockz.FakeClock
}

// newEnv registers a JS bundle "app" of js/a.js and js/b.js whose debug and
// production namespaces both run a counting unit and watch files.
func newEnv(t *testing.T) *env {
	t.Helper()
	source, fs := memSource(t, map[string]string{
		"js/a.js":   "var a = 1;",
		"js/b.js":   "var b = 2;",
		"js/c.js":   "var c = 3;",
		"css/a.css": "a{color:red}",
	})
	clock := clockz.NewFakeClock()
	resolver := NewResolver("v1", clock)
	registry := NewRegistry(source, resolver)
	unit := newCountingUnit("count")
	factory := NewFactory(unit)

	pipelines := map[WebFileType]*Pipeline{JS: factory.Build(unit)}
	debug := DefaultDebugOptions()
	debug.Pipelines = pipelines
	debug.FileWatch = true
	prod := DefaultProductionOptions()
	prod.Pipelines = pipelines
	prod.FileWatch = true

	if _, err := registry.Create("app", JS, "js/a.js", "js/b.js").
		WithEnvironmentOptions(debug, prod).
		Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	storeFs := afero.NewMemMapFs()
	store := NewDiskStore(storeFs)
	compiler := NewCompiler(registry, factory, source, store, resolver).Clock(clock)

	return &env{
		fs:       fs,
		source:   source,
		store:    store,
		storeFs:  storeFs,
		resolver: resolver,
		registry: registry,
		factory:  factory,
		compiler: compiler,
		unit:     unit,
		clock:    clock,
	}
}

func (e *env) request(t *testing.T, name string, debug bool, encoding string) ParsedRequest {
	t.Helper()
	cb := CacheBusterConfig
	if debug {
		cb = CacheBusterProcess
	}
	buster, err := e.resolver.Resolve(cb)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	req, err := ParseBundleRequest(FormatPath(name, JS, debug, buster.Value()), encoding)
	if err != nil {
		t.Fatalf("ParseBundleRequest failed: %v", err)
	}
	return req
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// recordingMetrics counts metrics callbacks.
type recordingMetrics struct {
	NoOpMetricsProvider
	mu          sync.Mutex
	hits        int
	misses      int
	successes   int
	failures    []string
	invalidated []ArtifactKey
}

func (m *recordingMetrics) OnCacheHit(ArtifactKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *recordingMetrics) OnCacheMiss(ArtifactKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *recordingMetrics) OnCompileSuccess(ArtifactKey, time.Duration, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *recordingMetrics) OnCompileFailure(_ ArtifactKey, stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, stage)
}

func (m *recordingMetrics) OnInvalidate(key ArtifactKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, key)
}
