package bundlez

import (
	"context"
	"fmt"

	"github.com/zoobzio/pipz"
	"golang.org/x/sync/errgroup"
)

// Pipeline identities.
var (
	pipelineID = pipz.NewIdentity("bundlez:pipeline", "Per-file transform chain")
	resetID    = pipz.NewIdentity("bundlez:reset", "Restores raw source before the chain runs")
)

// maxConcurrentReads bounds concurrent source reads within one compile.
const maxConcurrentReads = 8

// fileWork carries one file through the chain.
type fileWork struct {
	cc      *CompileContext
	file    SourceFile
	raw     string
	content string
	skip    map[string]bool
	failure *TransformError

	// imported is the compile's inlined-import record as it stood before
	// this file's first attempt.
	imported map[string]bool
}

// rewind puts w back to its state before the first attempt, including the
// imports recorded by units on a discarded attempt.
func (w *fileWork) rewind() {
	w.content = w.raw
	w.failure = nil
	w.cc.restoreImported(w.imported)
}

// Pipeline is an immutable ordered chain of transform units for one file
// type. Use a Factory to derive modified copies.
type Pipeline struct {
	units       []Transform
	conventions []Convention
	options     []Option
	chain       pipz.Chainable[*fileWork]
}

// NewPipeline builds a pipeline running units in order. Conventions decide
// per-file skips; options wrap each per-file chain.
func NewPipeline(units []Transform, conventions []Convention, opts ...Option) *Pipeline {
	p := &Pipeline{
		units:       append([]Transform(nil), units...),
		conventions: append([]Convention(nil), conventions...),
		options:     append([]Option(nil), opts...),
	}

	processors := make([]pipz.Chainable[*fileWork], 0, len(p.units)+1)
	processors = append(processors, pipz.Transform(resetID, func(_ context.Context, w *fileWork) *fileWork {
		w.rewind()
		return w
	}))
	for _, u := range p.units {
		processors = append(processors, unitProcessor(u))
	}

	var chain pipz.Chainable[*fileWork] = pipz.NewSequence(pipelineID, processors...)
	for _, opt := range p.options {
		chain = opt(chain)
	}
	p.chain = chain
	return p
}

// unitProcessor wraps a unit so it runs unless the file's conventions
// marked it skipped.
func unitProcessor(u Transform) pipz.Chainable[*fileWork] {
	name := u.Name()
	apply := pipz.Apply(pipz.NewIdentity(name, "Transform unit"), func(ctx context.Context, w *fileWork) (*fileWork, error) {
		out, err := u.Apply(ctx, w.cc, w.file, w.content)
		if err != nil {
			w.failure = &TransformError{Unit: name, File: w.file.Path, Cause: err}
			return w, w.failure
		}
		w.content = out
		return w, nil
	})
	return pipz.NewFilter(pipz.NewIdentity("skip:"+name, "Skips the unit by convention"),
		func(_ context.Context, w *fileWork) bool {
			return !w.skip[name]
		},
		apply,
	)
}

// Units returns a copy of the chain's units in order.
func (p *Pipeline) Units() []Transform {
	return append([]Transform(nil), p.units...)
}

// Names returns the unit names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.units))
	for i, u := range p.units {
		names[i] = u.Name()
	}
	return names
}

// Process reads every file through the compile context's source and runs
// the chain over each one in order. The first failing file aborts the whole
// call with its *TransformError and no partial result is returned.
func (p *Pipeline) Process(ctx context.Context, files []SourceFile, cc *CompileContext) ([]TransformedFile, error) {
	raw := make([][]byte, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, f := range files {
		g.Go(func() error {
			data, err := cc.ReadFile(gctx, f.Path)
			if err != nil {
				return &TransformError{Unit: "read", File: f.Path, Cause: err}
			}
			raw[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]TransformedFile, len(files))
	for i, f := range files {
		content, err := p.run(ctx, cc, f, string(raw[i]))
		if err != nil {
			return nil, err
		}
		out[i] = TransformedFile{SourceFile: f, Content: content}
	}
	return out, nil
}

// run transforms a single file.
func (p *Pipeline) run(ctx context.Context, cc *CompileContext, f SourceFile, raw string) (string, error) {
	w := &fileWork{cc: cc, file: f, raw: raw, skip: p.skips(f), imported: cc.importedSnapshot()}
	if _, err := p.chain.Process(ctx, w); err != nil {
		if w.failure != nil {
			return "", w.failure
		}
		return "", &TransformError{Unit: "pipeline", File: f.Path, Cause: fmt.Errorf("chain failed: %w", err)}
	}
	return w.content, nil
}

// skips evaluates the conventions for f once, before its chain runs.
func (p *Pipeline) skips(f SourceFile) map[string]bool {
	skip := make(map[string]bool)
	for _, u := range p.units {
		for _, conv := range p.conventions {
			if conv(f, u) {
				skip[u.Name()] = true
				break
			}
		}
	}
	return skip
}
