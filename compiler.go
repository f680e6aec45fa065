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

// Result is a served artifact plus what the transport needs to deliver it.
type Result struct {
	Artifact     *Artifact
	Type         WebFileType
	CacheControl CacheControl
}

// plan is a request resolved against the registry.
type plan struct {
	key       ArtifactKey
	name      string
	fileType  WebFileType
	files     []SourceFile
	pipeline  *Pipeline
	env       EnvironmentOptions
	composite bool
}

// Compiler coordinates lookup, compilation and storage of artifacts. At most
// one compile runs per artifact key; other callers wait and then read the
// result.
type Compiler struct {
	registry   *Registry
	factory    *Factory
	source     Source
	store      Store
	resolver   *Resolver
	clock      clockz.Clock
	metrics    MetricsProvider
	composite  BundleOptions
	locks      *keyLocks
	composites *compositeIndex

	failures    *failureLog
	lastFailure *CompileFailure

	mu       sync.Mutex
	states   map[ArtifactKey]State
	tokenGen uint64
}

// NewCompiler creates a Compiler.
func NewCompiler(registry *Registry, factory *Factory, source Source, store Store, resolver *Resolver) *Compiler {
	return &Compiler{
		registry:   registry,
		factory:    factory,
		source:     source,
		store:      store,
		resolver:   resolver,
		clock:      clockz.RealClock,
		composite:  DefaultBundleOptions(),
		locks:      newKeyLocks(),
		composites: newCompositeIndex(),
		states:     make(map[ArtifactKey]State),
	}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Clock sets a custom clock for time operations. Must be called before Serve.
func (c *Compiler) Clock(clock clockz.Clock) *Compiler {
	c.clock = clock
	return c
}

// Metrics sets a metrics provider. Must be called before Serve.
func (c *Compiler) Metrics(provider MetricsProvider) *Compiler {
	c.metrics = provider
	return c
}

// CompositeOptions sets the options used for ad-hoc composite requests.
// Must be called before Serve.
func (c *Compiler) CompositeOptions(opts BundleOptions) *Compiler {
	c.composite = opts
	return c
}

// ErrorHistorySize sets the number of recent compile failures to retain.
// Must be called before Serve.
func (c *Compiler) ErrorHistorySize(n int) *Compiler {
	c.failures = newFailureLog(n)
	return c
}

// Registry returns the bundle registry.
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// Resolver returns the cache-buster resolver.
func (c *Compiler) Resolver() *Resolver {
	return c.resolver
}

// State returns the compile state of key.
func (c *Compiler) State(key ArtifactKey) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[key]
}

// LastError returns the error of the most recent failed compile, or nil.
func (c *Compiler) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFailure == nil {
		return nil
	}
	return c.lastFailure.Err
}

// ErrorHistory returns recent compile failures, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (c *Compiler) ErrorHistory() []CompileFailure {
	return c.failures.snapshot()
}

// Key returns the artifact key a request resolves to under the current
// cache-buster tokens.
func (c *Compiler) Key(req ParsedRequest) (ArtifactKey, error) {
	p, err := c.resolve(req)
	if err != nil {
		return ArtifactKey{}, err
	}
	return p.key, nil
}

// Serve returns the artifact for req, compiling it first if the store has
// none. Concurrent callers for the same key wait for a single compile.
// The compile is detached from ctx: a caller giving up does not abort it, and
// the result is cached for whoever asks next.
func (c *Compiler) Serve(ctx context.Context, req ParsedRequest) (*Result, error) {
	p, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	art, err := c.lookup(ctx, p.key)
	if err != nil {
		return nil, err
	}
	if art != nil {
		c.hit(ctx, p.key)
		return c.result(p, art), nil
	}

	capitan.Emit(ctx, ArtifactMissed, KeyArtifact.Field(p.key.Path()))
	if c.metrics != nil {
		c.metrics.OnCacheMiss(p.key)
	}

	if p.composite {
		if err := c.checkFiles(ctx, p.files); err != nil {
			return nil, err
		}
	}

	unlock, err := c.locks.lock(ctx, p.key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another caller may have compiled while this one waited.
	art, err = c.lookup(ctx, p.key)
	if err != nil {
		return nil, err
	}
	if art != nil {
		c.hit(ctx, p.key)
		return c.result(p, art), nil
	}

	art, err = c.compile(context.WithoutCancel(ctx), p)
	if err != nil {
		return nil, err
	}
	return c.result(p, art), nil
}

// resolve maps a request to its plan.
func (c *Compiler) resolve(req ParsedRequest) (*plan, error) {
	switch t := req.Target.(type) {
	case BundleRequest:
		b, ok := c.registry.Get(t.Name)
		if !ok || b.Type != req.Type {
			return nil, fmt.Errorf("%w: bundle %q", ErrNotFound, t.Name)
		}
		env := b.Env(req.Debug)
		key, err := c.key(t.Name, env, req)
		if err != nil {
			return nil, err
		}
		return &plan{
			key:      key,
			name:     b.Name,
			fileType: b.Type,
			files:    b.OrderedFiles(),
			pipeline: c.pipeline(env, b.Type),
			env:      env,
		}, nil

	case CompositeRequest:
		env := c.composite.Debug
		if !req.Debug {
			env = c.composite.Production
		}
		key, err := c.key(compositeNamespace+t.Key, env, req)
		if err != nil {
			return nil, err
		}
		files := make([]SourceFile, len(t.Files))
		for i, f := range t.Files {
			files[i] = SourceFile{Path: f, Type: req.Type}
		}
		return &plan{
			key:       key,
			name:      t.Key,
			fileType:  req.Type,
			files:     files,
			pipeline:  c.pipeline(env, req.Type),
			env:       env,
			composite: true,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported request target %T", ErrNotFound, req.Target)
	}
}

// key builds the artifact key under the namespace's current token. The token
// in the URL only versions the client cache; the current token always wins.
func (c *Compiler) key(name string, env EnvironmentOptions, req ParsedRequest) (ArtifactKey, error) {
	buster, err := c.resolver.Resolve(env.CacheBuster)
	if err != nil {
		return ArtifactKey{}, err
	}
	return ArtifactKey{
		Name:        name,
		Token:       buster.Value(),
		Compression: req.Compression,
		Debug:       req.Debug,
	}, nil
}

func (c *Compiler) pipeline(env EnvironmentOptions, t WebFileType) *Pipeline {
	if p, ok := env.Pipelines[t]; ok && p != nil {
		return p
	}
	return c.factory.Default(t)
}

// lookup reads the artifact if it exists. An artifact deleted between the
// existence check and the read counts as missing.
func (c *Compiler) lookup(ctx context.Context, key ArtifactKey) (*Artifact, error) {
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	art, err := c.store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return art, nil
}

// checkFiles rejects composite requests naming files that do not exist.
func (c *Compiler) checkFiles(ctx context.Context, files []SourceFile) error {
	for _, f := range files {
		ok, err := c.source.Exists(ctx, f.Path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, f.Path)
		}
	}
	return nil
}

// compile runs the pipeline, combines, compresses and stores. Nothing is
// stored unless every step succeeds.
func (c *Compiler) compile(ctx context.Context, p *plan) (*Artifact, error) {
	start := c.clock.Now()
	c.transition(ctx, p.key, StateCompiling)
	capitan.Emit(ctx, CompileStarted,
		KeyBundle.Field(p.name),
		KeyArtifact.Field(p.key.Path()),
		KeyToken.Field(p.key.Token),
		KeyCompression.Field(p.key.Compression.String()),
		KeyDebug.Field(p.key.Debug),
		KeyFiles.Field(len(p.files)),
	)

	cc := NewCompileContext(p.name, p.fileType, p.key.Debug, c.source)
	transformed, err := p.pipeline.Process(ctx, p.files, cc)
	if err != nil {
		return nil, c.fail(ctx, p, "transform", start, err)
	}

	data, err := Compress(p.key.Compression, cc.Combine(transformed))
	if err != nil {
		return nil, c.fail(ctx, p, "compress", start, fmt.Errorf("compressing %s: %w", p.key.Path(), err))
	}

	if err := c.store.Write(ctx, p.key, data); err != nil {
		return nil, c.fail(ctx, p, "store", start, err)
	}
	if p.composite && p.env.FileWatch {
		c.composites.add(p.files, p.key)
	}

	duration := c.clock.Since(start)
	c.transition(ctx, p.key, StateReady)
	capitan.Emit(ctx, CompileSucceeded,
		KeyBundle.Field(p.name),
		KeyArtifact.Field(p.key.Path()),
		KeyToken.Field(p.key.Token),
		KeyCompression.Field(p.key.Compression.String()),
		KeyDebug.Field(p.key.Debug),
		KeyDuration.Field(duration),
		KeySize.Field(len(data)),
	)
	if c.metrics != nil {
		c.metrics.OnCompileSuccess(p.key, duration, len(data))
	}

	return &Artifact{Key: p.key, Data: data, ModTime: c.clock.Now()}, nil
}

// fail records a compile failure and returns err.
func (c *Compiler) fail(ctx context.Context, p *plan, stage string, start time.Time, err error) error {
	duration := c.clock.Since(start)
	failure := CompileFailure{Key: p.key, Stage: stage, At: c.clock.Now(), Err: err}
	c.mu.Lock()
	c.lastFailure = &failure
	c.mu.Unlock()
	c.failures.record(failure)

	c.transition(ctx, p.key, StateFailed)
	c.transition(ctx, p.key, StateMissing)
	capitan.Emit(ctx, CompileFailed,
		KeyBundle.Field(p.name),
		KeyArtifact.Field(p.key.Path()),
		KeyStage.Field(stage),
		KeyError.Field(err.Error()),
	)
	if c.metrics != nil {
		c.metrics.OnCompileFailure(p.key, stage, duration)
	}
	return err
}

func (c *Compiler) hit(ctx context.Context, key ArtifactKey) {
	c.transition(ctx, key, StateReady)
	capitan.Emit(ctx, ArtifactServed, KeyArtifact.Field(key.Path()))
	if c.metrics != nil {
		c.metrics.OnCacheHit(key)
	}
}

func (c *Compiler) result(p *plan, art *Artifact) *Result {
	return &Result{Artifact: art, Type: p.fileType, CacheControl: p.env.CacheControl}
}

// transition updates the state of key and emits a state change event if changed.
func (c *Compiler) transition(ctx context.Context, key ArtifactKey, to State) {
	c.mu.Lock()
	c.pruneRotated()
	from := c.states[key]
	if from == to {
		c.mu.Unlock()
		return
	}
	if to == StateMissing {
		delete(c.states, key)
	} else {
		c.states[key] = to
	}
	c.mu.Unlock()

	capitan.Emit(ctx, CompileStateChanged,
		KeyArtifact.Field(key.Path()),
		KeyOldState.Field(from.String()),
		KeyNewState.Field(to.String()),
	)
	if c.metrics != nil {
		c.metrics.OnStateChange(key, from, to)
	}
}

// pruneRotated drops the states of keys whose token was rotated away. Those
// keys are never addressed again. Callers hold c.mu.
func (c *Compiler) pruneRotated() {
	gen := c.resolver.Generation()
	if gen == c.tokenGen {
		return
	}
	c.tokenGen = gen
	tokens := c.resolver.Tokens()
	for key := range c.states {
		if !tokens[key.Token] {
			delete(c.states, key)
		}
	}
}
