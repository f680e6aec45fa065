// Package bundlez serves groups of JavaScript and CSS files as one combined,
// transformed, compressed and cached artifact.
//
// The core type is Compiler, which resolves a request to a bundle, and either
// serves the cached artifact or compiles it exactly once:
//
//	Request → Registry → Pipeline (per file) → Combine → Compress → Store
//
// Artifacts are addressed by bundle name, cache-buster token, compression
// variant and debug flag. An Invalidator deletes the artifacts of a bundle
// when one of its files changes.
//
// # Registration
//
//	resolver := bundlez.NewResolver("v1", clockz.RealClock)
//	source := bundlez.NewDirSource("./wwwroot")
//	registry := bundlez.NewRegistry(source, resolver)
//
//	_, err := registry.Create("site", bundlez.CSS, "css/reset.css", "css/site/**/*.css").
//	    WithEnvironmentOptions(debugOpts, bundlez.DefaultProductionOptions()).
//	    Register()
//
// # Serving
//
//	compiler := bundlez.NewCompiler(registry, bundlez.DefaultFactory(), source,
//	    bundlez.NewDirStore("./cache"), resolver)
//
//	req, err := bundlez.ParseBundleRequest("site.css.v1a2b3c", r.Header.Get("Accept-Encoding"))
//	result, err := compiler.Serve(ctx, req)
//
// # Pipelines
//
// Each file type has a default chain: [minify] for JS and
// [import, url, minify] for CSS. A Factory derives custom chains:
//
//	factory := bundlez.DefaultFactory()
//	p, err := factory.Replace(factory.Default(bundlez.JS), bundlez.UnitJSMinify, esbuild.NewMinifier(bundlez.JS))
//
// Files named *.min.js or *.min.css skip minification.
//
// # Observability
//
// Every compile, cache hit, state transition and invalidation emits a capitan
// signal. Hook them for logging:
//
//	capitan.Hook(bundlez.CompileFailed, func(_ context.Context, e *capitan.Event) {
//	    msg, _ := bundlez.KeyError.From(e)
//	    log.Printf("compile failed: %s", msg)
//	})
package bundlez
