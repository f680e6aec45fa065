package bundlez

import (
	"context"
	"path"
	"strings"
)

// Kind classifies a transform unit so conventions can reason about it without
// knowing concrete types.
type Kind int

const (
	// KindCustom is any unit the conventions have no opinion about.
	KindCustom Kind = iota
	// KindMinify units shrink content and are skipped for pre-minified files.
	KindMinify
	// KindImport units inline referenced files.
	KindImport
	// KindURL units rewrite references to other resources.
	KindURL
)

// Names of the default units. Factory.Replace addresses units by name.
const (
	UnitJSMinify  = "minify.js"
	UnitCSSMinify = "minify.css"
	UnitCSSImport = "css.import"
	UnitCSSURL    = "css.url"
)

// Transform is a single-purpose content transformer operating on one file.
// It receives the previous unit's output (or the raw source for the first
// unit) and returns the replacement text.
type Transform interface {
	Name() string
	Kind() Kind
	Apply(ctx context.Context, cc *CompileContext, file SourceFile, content string) (string, error)
}

// TransformFunc adapts a function into a Transform.
type TransformFunc struct {
	name string
	kind Kind
	fn   func(ctx context.Context, cc *CompileContext, file SourceFile, content string) (string, error)
}

// NewTransformFunc creates an ad-hoc unit.
func NewTransformFunc(name string, kind Kind, fn func(ctx context.Context, cc *CompileContext, file SourceFile, content string) (string, error)) *TransformFunc {
	return &TransformFunc{name: name, kind: kind, fn: fn}
}

// Name returns the unit name.
func (t *TransformFunc) Name() string { return t.name }

// Kind returns the unit kind.
func (t *TransformFunc) Kind() Kind { return t.kind }

// Apply runs the wrapped function.
func (t *TransformFunc) Apply(ctx context.Context, cc *CompileContext, file SourceFile, content string) (string, error) {
	return t.fn(ctx, cc, file, content)
}

// Convention decides whether a unit should be skipped for a file. Conventions
// are evaluated once per file before its chain runs.
type Convention func(file SourceFile, unit Transform) bool

// MinifiedFileConvention skips minification of files whose name already marks
// them as minified, e.g. jquery.min.js.
func MinifiedFileConvention(file SourceFile, unit Transform) bool {
	if unit.Kind() != KindMinify {
		return false
	}
	base := strings.ToLower(path.Base(file.Path))
	return strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".min.css")
}
