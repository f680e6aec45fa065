package bundlez

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/zoobzio/capitan"
)

// Registry is the in-memory catalog of bundles. It is read-mostly after
// startup.
type Registry struct {
	source   Source
	resolver *Resolver

	mu      sync.RWMutex
	bundles map[string]*Bundle
	owners  map[string][]string
}

// NewRegistry creates a registry. source expands glob patterns in file lists
// and resolver validates cache-buster names.
func NewRegistry(source Source, resolver *Resolver) *Registry {
	return &Registry{
		source:   source,
		resolver: resolver,
		bundles:  make(map[string]*Bundle),
		owners:   make(map[string][]string),
	}
}

// BundleBuilder collects a bundle definition until Register.
type BundleBuilder struct {
	registry *Registry
	name     string
	fileType WebFileType
	paths    []string
	options  BundleOptions
	ordering func(a, b SourceFile) int
}

// Create starts a bundle definition. Paths are relative to the web root and
// may be doublestar patterns such as css/**/*.css.
func (r *Registry) Create(name string, t WebFileType, paths ...string) *BundleBuilder {
	return &BundleBuilder{
		registry: r,
		name:     name,
		fileType: t,
		paths:    paths,
		options:  DefaultBundleOptions(),
	}
}

// WithEnvironmentOptions sets the debug and production options.
func (b *BundleBuilder) WithEnvironmentOptions(debug, production EnvironmentOptions) *BundleBuilder {
	b.options = BundleOptions{Debug: debug, Production: production}
	return b
}

// OnOrdering sets an ordering override for the file list.
func (b *BundleBuilder) OnOrdering(cmp func(a, b SourceFile) int) *BundleBuilder {
	b.ordering = cmp
	return b
}

// Register validates the definition and adds it to the registry.
func (b *BundleBuilder) Register() (*Bundle, error) {
	return b.registry.add(b)
}

func (r *Registry) add(b *BundleBuilder) (*Bundle, error) {
	if b.name == "" || strings.ContainsAny(b.name, `/\`) {
		return nil, configError("bundle "+b.name, "name must be non-empty and contain no path separators")
	}
	if b.fileType != JS && b.fileType != CSS {
		return nil, configError("bundle "+b.name, "unknown file type %d", b.fileType)
	}
	for _, env := range []EnvironmentOptions{b.options.Debug, b.options.Production} {
		if _, err := r.resolver.Resolve(env.CacheBuster); err != nil {
			return nil, err
		}
	}

	files, err := r.expand(b.name, b.fileType, b.paths)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Name:     b.name,
		Type:     b.fileType,
		Files:    files,
		Ordering: b.ordering,
		Options:  b.options,
	}

	r.mu.Lock()
	if _, exists := r.bundles[b.name]; exists {
		r.mu.Unlock()
		return nil, configError("bundle "+b.name, "already registered")
	}
	r.bundles[b.name] = bundle
	for _, f := range files {
		r.owners[f.Path] = append(r.owners[f.Path], b.name)
	}
	r.mu.Unlock()

	capitan.Emit(context.Background(), BundleRegistered,
		KeyBundle.Field(b.name),
		KeyFileType.Field(b.fileType.String()),
		KeyFiles.Field(len(files)),
	)
	return bundle, nil
}

// expand cleans explicit paths and expands patterns, dropping duplicates.
func (r *Registry) expand(name string, t WebFileType, paths []string) ([]SourceFile, error) {
	seen := make(map[string]bool)
	var files []SourceFile
	for _, p := range paths {
		var matches []string
		if strings.ContainsAny(p, "*?[{") {
			if r.source == nil {
				return nil, configError("bundle "+name, "pattern %q needs a source", p)
			}
			expanded, err := r.source.Glob(strings.TrimPrefix(p, "/"))
			if err != nil {
				return nil, configError("bundle "+name, "%v", err)
			}
			matches = expanded
		} else {
			matches = []string{p}
		}
		for _, m := range matches {
			clean, ok := cleanPath(m)
			if !ok {
				return nil, configError("bundle "+name, "invalid path %q", m)
			}
			ft, ok := TypeOf(clean)
			if !ok || ft != t {
				return nil, configError("bundle "+name, "%s is not a %s file", clean, t)
			}
			if seen[clean] {
				continue
			}
			seen[clean] = true
			files = append(files, SourceFile{Path: clean, Type: t})
		}
	}
	return files, nil
}

// Remove drops a bundle so it can be registered again with a new definition.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[name]
	if !ok {
		return false
	}
	delete(r.bundles, name)
	for _, f := range b.Files {
		owners := r.owners[f.Path]
		for i, o := range owners {
			if o == name {
				owners = append(owners[:i], owners[i+1:]...)
				break
			}
		}
		if len(owners) == 0 {
			delete(r.owners, f.Path)
		} else {
			r.owners[f.Path] = owners
		}
	}
	return true
}

// Get returns a bundle by name.
func (r *Registry) Get(name string) (*Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[name]
	return b, ok
}

// Exists reports whether a bundle is registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the sorted names of the bundles of type t.
func (r *Registry) Names(t WebFileType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, b := range r.bundles {
		if b.Type == t {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BundlesForFile returns the names of the bundles containing path.
func (r *Registry) BundlesForFile(path string) []string {
	clean, ok := cleanPath(path)
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.owners[clean]...)
}
