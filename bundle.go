package bundlez

import (
	"slices"
	"time"
)

// DefaultMaxAge is the production Cache-Control max-age.
const DefaultMaxAge = 10 * 24 * time.Hour

// CacheControl configures the caching headers served with an artifact.
type CacheControl struct {
	ETag   bool
	MaxAge time.Duration
}

// EnvironmentOptions configure one namespace (debug or production) of a bundle.
type EnvironmentOptions struct {
	// Pipelines overrides the factory default chain per file type.
	Pipelines map[WebFileType]*Pipeline

	// CacheBuster names the Resolver strategy whose token versions artifacts.
	CacheBuster string

	// FileWatch enables invalidation when a source file changes.
	FileWatch bool

	CacheControl CacheControl

	// ProcessAsComposite serves one combined artifact. When false (debug only)
	// URL generation points at the raw files instead.
	ProcessAsComposite bool
}

// BundleOptions holds the independently configured debug and production
// namespaces. Both share the bundle's file list.
type BundleOptions struct {
	Debug      EnvironmentOptions
	Production EnvironmentOptions
}

// DefaultDebugOptions serves raw files, versions by process lifetime and
// disables client caching.
func DefaultDebugOptions() EnvironmentOptions {
	return EnvironmentOptions{
		CacheBuster: CacheBusterProcess,
	}
}

// DefaultProductionOptions serves one combined artifact versioned by
// configuration with long lived client caching.
func DefaultProductionOptions() EnvironmentOptions {
	return EnvironmentOptions{
		CacheBuster:        CacheBusterConfig,
		CacheControl:       CacheControl{ETag: true, MaxAge: DefaultMaxAge},
		ProcessAsComposite: true,
	}
}

// DefaultBundleOptions returns the default debug and production options.
func DefaultBundleOptions() BundleOptions {
	return BundleOptions{
		Debug:      DefaultDebugOptions(),
		Production: DefaultProductionOptions(),
	}
}

// Bundle is a named, ordered collection of source files of one type.
type Bundle struct {
	Name  string
	Type  WebFileType
	Files []SourceFile

	// Ordering optionally overrides declaration order. It must be
	// deterministic for a fixed input set.
	Ordering func(a, b SourceFile) int

	Options BundleOptions
}

// Env returns the options of the debug or production namespace.
func (b *Bundle) Env(debug bool) EnvironmentOptions {
	if debug {
		return b.Options.Debug
	}
	return b.Options.Production
}

// OrderedFiles returns the file list in serving order.
func (b *Bundle) OrderedFiles() []SourceFile {
	files := slices.Clone(b.Files)
	if b.Ordering != nil {
		slices.SortStableFunc(files, b.Ordering)
	}
	return files
}

// Contains reports whether path is one of the bundle's files.
func (b *Bundle) Contains(path string) bool {
	return slices.ContainsFunc(b.Files, func(f SourceFile) bool {
		return f.Path == path
	})
}
