package bundlez

// Factory holds the explicit registry of transform units built once at
// startup and derives pipelines from it. Every derivation returns a new
// Pipeline; nothing shared is mutated.
type Factory struct {
	units       map[string]Transform
	conventions []Convention
	options     []Option
}

// NewFactory creates a factory over the given units. A later unit with the
// same name replaces an earlier one.
func NewFactory(units ...Transform) *Factory {
	f := &Factory{units: make(map[string]Transform, len(units))}
	for _, u := range units {
		f.units[u.Name()] = u
	}
	return f
}

// DefaultFactory creates a factory with the default units and the
// minified-file convention.
func DefaultFactory() *Factory {
	return NewFactory(
		NewJSMinifier(),
		NewCSSMinifier(),
		NewCSSImportInliner(),
		NewCSSURLRewriter(),
	).Conventions(MinifiedFileConvention)
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Conventions sets the skip conventions of pipelines built afterwards.
// Must be called during startup, before pipelines are shared.
func (f *Factory) Conventions(conventions ...Convention) *Factory {
	f.conventions = append([]Convention(nil), conventions...)
	return f
}

// Options sets the chain options of pipelines built afterwards.
// Must be called during startup, before pipelines are shared.
func (f *Factory) Options(opts ...Option) *Factory {
	f.options = append([]Option(nil), opts...)
	return f
}

// Unit returns a registered unit by name.
func (f *Factory) Unit(name string) (Transform, bool) {
	u, ok := f.units[name]
	return u, ok
}

// Default returns the default chain for t: [minify] for JS and
// [import, url, minify] for CSS. Units missing from the registry are left out.
func (f *Factory) Default(t WebFileType) *Pipeline {
	var names []string
	switch t {
	case JS:
		names = []string{UnitJSMinify}
	case CSS:
		names = []string{UnitCSSImport, UnitCSSURL, UnitCSSMinify}
	}
	units := make([]Transform, 0, len(names))
	for _, name := range names {
		if u, ok := f.units[name]; ok {
			units = append(units, u)
		}
	}
	return f.Build(units...)
}

// Build constructs an ad-hoc pipeline from an explicit unit list.
func (f *Factory) Build(units ...Transform) *Pipeline {
	return NewPipeline(units, f.conventions, f.options...)
}

// Replace returns a copy of p with the unit named name swapped for unit.
func (f *Factory) Replace(p *Pipeline, name string, unit Transform) (*Pipeline, error) {
	units := p.Units()
	for i, u := range units {
		if u.Name() == name {
			units[i] = unit
			return NewPipeline(units, p.conventions, p.options...), nil
		}
	}
	return nil, configError("pipeline", "no unit named %q", name)
}

// Insert returns a copy of p with unit inserted at index i. Out of range
// indexes clamp to the ends of the chain.
func (f *Factory) Insert(p *Pipeline, i int, unit Transform) *Pipeline {
	units := p.Units()
	i = max(0, min(i, len(units)))
	units = append(units[:i], append([]Transform{unit}, units[i:]...)...)
	return NewPipeline(units, p.conventions, p.options...)
}

// Remove returns a copy of p without the unit named name.
func (f *Factory) Remove(p *Pipeline, name string) *Pipeline {
	units := p.Units()
	kept := units[:0]
	for _, u := range units {
		if u.Name() != name {
			kept = append(kept, u)
		}
	}
	return NewPipeline(kept, p.conventions, p.options...)
}
