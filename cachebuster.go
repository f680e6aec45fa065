package bundlez

import (
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/zeebo/blake3"
	"github.com/zoobzio/clockz"
)

// Built-in cache-buster names.
const (
	CacheBusterConfig  = "config"
	CacheBusterProcess = "process"
)

// CacheBuster produces the versioning token embedded in public URLs and in
// artifact keys.
type CacheBuster interface {
	Name() string
	Value() string
}

// ConfigCacheBuster versions artifacts by the configured version string. The
// token is stable across restarts until the configuration changes.
type ConfigCacheBuster struct {
	token string
}

// NewConfigCacheBuster derives the token from version.
func NewConfigCacheBuster(version string) *ConfigCacheBuster {
	sum := blake3.Sum256([]byte(version))
	return &ConfigCacheBuster{token: hex.EncodeToString(sum[:6])}
}

// Name returns CacheBusterConfig.
func (*ConfigCacheBuster) Name() string { return CacheBusterConfig }

// Value returns the token.
func (b *ConfigCacheBuster) Value() string { return b.token }

// ProcessCacheBuster versions artifacts by process start, so every restart
// produces a new token.
type ProcessCacheBuster struct {
	token string
}

// NewProcessCacheBuster fixes the token at the clock's current time.
func NewProcessCacheBuster(clock clockz.Clock) *ProcessCacheBuster {
	return &ProcessCacheBuster{token: strconv.FormatInt(clock.Now().UnixNano(), 36)}
}

// Name returns CacheBusterProcess.
func (*ProcessCacheBuster) Name() string { return CacheBusterProcess }

// Value returns the token.
func (b *ProcessCacheBuster) Value() string { return b.token }

// Resolver is the registry of available cache-buster strategies.
type Resolver struct {
	mu         sync.RWMutex
	busters    map[string]CacheBuster
	generation uint64
}

// NewResolver creates a resolver with the config and process strategies.
func NewResolver(version string, clock clockz.Clock) *Resolver {
	r := &Resolver{busters: make(map[string]CacheBuster)}
	r.Register(NewConfigCacheBuster(version))
	r.Register(NewProcessCacheBuster(clock))
	return r
}

// Register adds or replaces a strategy under its name. Replacing the config
// strategy rotates its token: artifacts under the old token stay on disk but
// are no longer addressed.
func (r *Resolver) Register(b CacheBuster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busters[b.Name()] = b
	r.generation++
}

// Generation changes every time a strategy is registered.
func (r *Resolver) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Tokens returns the set of current token values.
func (r *Resolver) Tokens() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make(map[string]bool, len(r.busters))
	for _, b := range r.busters {
		tokens[b.Value()] = true
	}
	return tokens
}

// Resolve returns the strategy registered under name.
func (r *Resolver) Resolve(name string) (CacheBuster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.busters[name]
	if !ok {
		return nil, configError("cache buster", "unknown type %q", name)
	}
	return b, nil
}
