// Package esbuild provides bundlez minifier units backed by esbuild.
//
// The units carry the names of the default minifiers, so they can replace them
// in a pipeline by name:
//
//	factory := bundlez.DefaultFactory()
//	p, err := factory.Replace(factory.Default(bundlez.JS), bundlez.UnitJSMinify, esbuild.New(bundlez.JS))
package esbuild

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/zoobzio/bundlez"
)

// Minifier minifies one web file type with esbuild's transform API.
type Minifier struct {
	fileType bundlez.WebFileType
	loader   api.Loader
	target   api.Target
}

// Option configures a Minifier.
type Option func(*Minifier)

// WithTarget sets the language level of the output. Defaults to ES2017.
func WithTarget(t api.Target) Option {
	return func(m *Minifier) {
		m.target = t
	}
}

// New creates a minifier for t.
func New(t bundlez.WebFileType, opts ...Option) *Minifier {
	m := &Minifier{
		fileType: t,
		loader:   api.LoaderJS,
		target:   api.ES2017,
	}
	if t == bundlez.CSS {
		m.loader = api.LoaderCSS
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the name of the default minifier for the file type.
func (m *Minifier) Name() string {
	if m.fileType == bundlez.CSS {
		return bundlez.UnitCSSMinify
	}
	return bundlez.UnitJSMinify
}

// Kind returns bundlez.KindMinify.
func (*Minifier) Kind() bundlez.Kind { return bundlez.KindMinify }

// Apply minifies content. Syntax errors fail the unit with esbuild's first
// message.
func (m *Minifier) Apply(_ context.Context, _ *bundlez.CompileContext, file bundlez.SourceFile, content string) (string, error) {
	result := api.Transform(content, api.TransformOptions{
		Loader:            m.loader,
		Target:            m.target,
		Sourcefile:        file.Path,
		Charset:           api.CharsetUTF8,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("esbuild: %s", result.Errors[0].Text)
	}
	return string(result.Code), nil
}

var _ bundlez.Transform = (*Minifier)(nil)
