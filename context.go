package bundlez

import (
	"context"
	"maps"
	"sync"
)

// CompileContext is the per-compile state shared by every unit and file of
// one compile attempt. It is owned by a single compile and discarded with it.
type CompileContext struct {
	Name  string
	Type  WebFileType
	Debug bool

	source Source

	mu         sync.Mutex
	items      map[string]any
	prependers []func() string
	appenders  []func() string
}

// NewCompileContext creates a context for compiling name.
func NewCompileContext(name string, t WebFileType, debug bool, source Source) *CompileContext {
	return &CompileContext{
		Name:   name,
		Type:   t,
		Debug:  debug,
		source: source,
		items:  make(map[string]any),
	}
}

// Extension returns the extension of the artifact being compiled.
func (c *CompileContext) Extension() string {
	return c.Type.Extension()
}

// MIME returns the Content-Type of the artifact being compiled.
func (c *CompileContext) MIME() string {
	return c.Type.MIME()
}

// ReadFile reads a file through the compile's source.
func (c *CompileContext) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return c.source.ReadFile(ctx, path)
}

// Get returns a scratch value.
func (c *CompileContext) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

// Set stores a scratch value visible to every later unit and file.
func (c *CompileContext) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = v
}

// AddPrepender registers a fragment emitted before all files.
func (c *CompileContext) AddPrepender(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prependers = append(c.prependers, fn)
}

// AddAppender registers a fragment emitted after all files.
func (c *CompileContext) AddAppender(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appenders = append(c.appenders, fn)
}

// Combine joins the transformed files with the registered fragments.
func (c *CompileContext) Combine(files []TransformedFile) []byte {
	c.mu.Lock()
	prependers := append([]func() string(nil), c.prependers...)
	appenders := append([]func() string(nil), c.appenders...)
	c.mu.Unlock()

	contents := make([][]byte, len(files))
	for i, f := range files {
		contents[i] = []byte(f.Content)
	}
	return CombineBytes(contents, prependers, appenders)
}

// importedSnapshot copies the set of inlined imports.
func (c *CompileContext) importedSnapshot() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen, _ := c.items[importedKey].(map[string]bool)
	return maps.Clone(seen)
}

// restoreImported replaces the set of inlined imports with a copy of seen.
func (c *CompileContext) restoreImported(seen map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seen == nil {
		delete(c.items, importedKey)
		return
	}
	c.items[importedKey] = maps.Clone(seen)
}

// markImported records path as inlined and reports whether it was new.
func (c *CompileContext) markImported(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen, _ := c.items[importedKey].(map[string]bool)
	if seen == nil {
		seen = make(map[string]bool)
		c.items[importedKey] = seen
	}
	if seen[path] {
		return false
	}
	seen[path] = true
	return true
}
