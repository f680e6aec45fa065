package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zoobzio/bundlez"
	bzt "github.com/zoobzio/bundlez/testing"
	"github.com/zoobzio/clockz"
)

type fixture struct {
	compiler *bundlez.Compiler
	urls     *bundlez.URLs
	handler  http.Handler
	unit     *bzt.CountingTransform
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	source := bzt.NewMemSource(t, map[string]string{
		"js/a.js":   "var a = 1;",
		"js/b.js":   "var b = 2;",
		"css/a.css": "a{color:red}",
	})
	resolver := bundlez.NewResolver("v1", clockz.NewFakeClock())
	registry := bundlez.NewRegistry(source, resolver)

	unit := bzt.NewCountingTransform("count", bundlez.KindCustom)
	factory := bundlez.NewFactory(unit)
	pipeline := factory.Build(unit)

	prod := bundlez.DefaultProductionOptions()
	prod.Pipelines = map[bundlez.WebFileType]*bundlez.Pipeline{bundlez.JS: pipeline}
	if _, err := registry.Create("app", bundlez.JS, "js/a.js", "js/b.js").
		WithEnvironmentOptions(bundlez.DefaultDebugOptions(), prod).
		Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := registry.Create("missing", bundlez.JS, "js/gone.js").
		WithEnvironmentOptions(bundlez.DefaultDebugOptions(), prod).
		Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	compiler := bundlez.NewCompiler(registry, factory, source, bzt.NewMemStore(), resolver)
	return &fixture{
		compiler: compiler,
		urls:     bundlez.NewURLs(compiler),
		handler:  New(compiler).Handler(),
		unit:     unit,
	}
}

func (f *fixture) get(t *testing.T, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) bundleURL(t *testing.T, name string) string {
	t.Helper()
	urls, err := f.urls.Bundle(name, false)
	if err != nil {
		t.Fatalf("Bundle URL failed: %v", err)
	}
	return urls[0]
}

func TestServer_ServesBundle(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, f.bundleURL(t, "app"), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "var a = 1;;var b = 2;;" {
		t.Errorf("unexpected body %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("expected javascript content type, got %q", ct)
	}
	if rec.Header().Get("Content-Encoding") != "" {
		t.Errorf("expected no content encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	if rec.Header().Get("Vary") != "Accept-Encoding" {
		t.Errorf("expected Vary: Accept-Encoding, got %q", rec.Header().Get("Vary"))
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=864000" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

func TestServer_Gzip(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, f.bundleURL(t, "app"), http.Header{"Accept-Encoding": {"gzip, deflate"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip, got %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader failed: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gzip read failed: %v", err)
	}
	if string(body) != "var a = 1;;var b = 2;;" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestServer_ETagNotModified(t *testing.T) {
	f := newFixture(t)
	url := f.bundleURL(t, "app")

	first := f.get(t, url, nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag")
	}

	second := f.get(t, url, http.Header{"If-None-Match": {etag}})
	if second.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Errorf("expected empty body, got %d bytes", second.Body.Len())
	}
}

func TestServer_CompilesOnce(t *testing.T) {
	f := newFixture(t)
	url := f.bundleURL(t, "app")

	for i := 0; i < 3; i++ {
		if rec := f.get(t, url, nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if f.unit.Calls() != 2 {
		t.Errorf("expected one compile of 2 files, got %d unit calls", f.unit.Calls())
	}
}

func TestServer_DebugNoCache(t *testing.T) {
	f := newFixture(t)
	token, err := f.compiler.Resolver().Resolve(bundlez.CacheBusterProcess)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	rec := f.get(t, "/sb/"+bundlez.FormatPath("app", bundlez.JS, true, token.Value()), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected no-cache, got %q", cc)
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag in debug")
	}
}

func TestServer_UnknownBundle(t *testing.T) {
	f := newFixture(t)

	if rec := f.get(t, "/sb/nope.js.vabc", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_MalformedID(t *testing.T) {
	f := newFixture(t)

	if rec := f.get(t, "/sb/app", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_MissingFileIsServerError(t *testing.T) {
	f := newFixture(t)

	if rec := f.get(t, f.bundleURL(t, "missing"), nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestServer_Composite(t *testing.T) {
	f := newFixture(t)

	url, err := f.urls.Composite(bundlez.JS, false, "js/b.js", "js/a.js")
	if err != nil {
		t.Fatalf("Composite URL failed: %v", err)
	}
	rec := f.get(t, url, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Composites use the factory default chain, which is empty here.
	if body := rec.Body.String(); body != "var b = 2;;var a = 1;;" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestServer_CompositeKeyMismatch(t *testing.T) {
	f := newFixture(t)

	url, err := f.urls.Composite(bundlez.JS, false, "js/a.js")
	if err != nil {
		t.Fatalf("Composite URL failed: %v", err)
	}
	tampered := strings.Replace(url, "f=js%2Fa.js", "f=js%2Fb.js", 1)

	if rec := f.get(t, tampered, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CompositeMissingFile(t *testing.T) {
	f := newFixture(t)

	url, err := f.urls.Composite(bundlez.JS, false, "js/a.js", "js/gone.js")
	if err != nil {
		t.Fatalf("Composite URL failed: %v", err)
	}
	if rec := f.get(t, url, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_HandlerIsStable(t *testing.T) {
	f := newFixture(t)
	s := New(f.compiler)

	if s.Handler() != s.Handler() {
		t.Error("expected the same handler on every call")
	}
}

func TestETag(t *testing.T) {
	a := ETag([]byte("a"))
	if a != ETag([]byte("a")) {
		t.Error("expected stable ETag")
	}
	if a == ETag([]byte("b")) {
		t.Error("expected different ETags for different bodies")
	}
	if !strings.HasPrefix(a, `"`) || !strings.HasSuffix(a, `"`) {
		t.Errorf("expected quoted ETag, got %s", a)
	}
}
