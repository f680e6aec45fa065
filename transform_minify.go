package bundlez

import (
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

// JSMinifier minifies JavaScript with tdewolff/minify.
type JSMinifier struct {
	m *minify.M
}

// NewJSMinifier creates the default JavaScript minifier unit.
func NewJSMinifier() *JSMinifier {
	m := minify.New()
	m.AddFunc(JS.MIME(), js.Minify)
	return &JSMinifier{m: m}
}

// Name returns UnitJSMinify.
func (*JSMinifier) Name() string { return UnitJSMinify }

// Kind returns KindMinify.
func (*JSMinifier) Kind() Kind { return KindMinify }

// Apply minifies content.
func (u *JSMinifier) Apply(_ context.Context, _ *CompileContext, _ SourceFile, content string) (string, error) {
	return u.m.String(JS.MIME(), content)
}

// CSSMinifier minifies stylesheets with tdewolff/minify.
type CSSMinifier struct {
	m *minify.M
}

// NewCSSMinifier creates the default stylesheet minifier unit.
func NewCSSMinifier() *CSSMinifier {
	m := minify.New()
	m.AddFunc(CSS.MIME(), css.Minify)
	return &CSSMinifier{m: m}
}

// Name returns UnitCSSMinify.
func (*CSSMinifier) Name() string { return UnitCSSMinify }

// Kind returns KindMinify.
func (*CSSMinifier) Kind() Kind { return KindMinify }

// Apply minifies content.
func (u *CSSMinifier) Apply(_ context.Context, _ *CompileContext, _ SourceFile, content string) (string, error) {
	return u.m.String(CSS.MIME(), content)
}
