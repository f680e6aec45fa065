package bundlez

import (
	"fmt"
	"net/url"
	"strings"
)

// Default endpoint prefixes.
const (
	DefaultBundlePath    = "/sb"
	DefaultCompositePath = "/sc"
)

// URLs renders the URLs a page uses to reference bundles and composites.
type URLs struct {
	compiler      *Compiler
	bundlePath    string
	compositePath string
}

// NewURLs creates a URL builder for the bundles and composite options of
// compiler, using the default endpoint prefixes.
func NewURLs(compiler *Compiler) *URLs {
	return &URLs{
		compiler:      compiler,
		bundlePath:    DefaultBundlePath,
		compositePath: DefaultCompositePath,
	}
}

// BundlePath sets the prefix of the bundle endpoint.
func (u *URLs) BundlePath(p string) *URLs {
	u.bundlePath = strings.TrimRight(p, "/")
	return u
}

// CompositePath sets the prefix of the composite endpoint.
func (u *URLs) CompositePath(p string) *URLs {
	u.compositePath = strings.TrimRight(p, "/")
	return u
}

// Bundle returns the URLs for a registered bundle. A debug namespace that does
// not process as composite yields one URL per raw source file, in serving
// order; otherwise a single versioned bundle URL is returned.
func (u *URLs) Bundle(name string, debug bool) ([]string, error) {
	b, ok := u.compiler.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: bundle %q", ErrNotFound, name)
	}
	env := b.Env(debug)

	if debug && !env.ProcessAsComposite {
		files := b.OrderedFiles()
		urls := make([]string, len(files))
		for i, f := range files {
			urls[i] = "/" + f.Path
		}
		return urls, nil
	}

	buster, err := u.compiler.resolver.Resolve(env.CacheBuster)
	if err != nil {
		return nil, err
	}
	return []string{u.bundlePath + "/" + FormatPath(b.Name, b.Type, debug, buster.Value())}, nil
}

// Composite returns the URL for an ad-hoc, ordered list of files of type t.
// The file list travels in the query string; its key is part of the path.
func (u *URLs) Composite(t WebFileType, debug bool, files ...string) (string, error) {
	if len(files) == 0 {
		return "", configError("composite", "no files")
	}
	cleaned := make([]string, len(files))
	for i, f := range files {
		c, ok := cleanPath(f)
		if !ok {
			return "", configError("composite", "invalid path %q", f)
		}
		if ft, ok := TypeOf(c); !ok || ft != t {
			return "", configError("composite", "%s is not a %s file", c, t)
		}
		cleaned[i] = c
	}

	env := u.compiler.composite.Production
	if debug {
		env = u.compiler.composite.Debug
	}
	buster, err := u.compiler.resolver.Resolve(env.CacheBuster)
	if err != nil {
		return "", err
	}

	q := url.Values{CompositeFilesParam: cleaned}
	return u.compositePath + "/" + FormatPath(CompositeKey(cleaned), t, debug, buster.Value()) + "?" + q.Encode(), nil
}

// CompositeFilesParam is the query parameter carrying composite file paths.
const CompositeFilesParam = "f"
