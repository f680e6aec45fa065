package bundlez

import (
	"context"
	"testing"
	"time"
)

// serveAll compiles every compression variant of "app" in both namespaces.
func serveAll(t *testing.T, e *env) []ArtifactKey {
	t.Helper()
	var keys []ArtifactKey
	for _, debug := range []bool{true, false} {
		for _, enc := range []string{"", "gzip", "deflate"} {
			res, err := e.compiler.Serve(context.Background(), e.request(t, "app", debug, enc))
			if err != nil {
				t.Fatalf("Serve failed: %v", err)
			}
			keys = append(keys, res.Artifact.Key)
		}
	}
	return keys
}

func exists(t *testing.T, e *env, key ArtifactKey) bool {
	t.Helper()
	ok, err := e.store.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	return ok
}

func TestInvalidator_DeletesEveryVariant(t *testing.T) {
	e := newEnv(t)
	metrics := &recordingMetrics{}
	e.compiler.Metrics(metrics)
	keys := serveAll(t, e)

	if err := NewInvalidator(e.compiler).Invalidate(context.Background(), FileChangeEvent{Path: "js/b.js"}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	for _, key := range keys {
		if exists(t, e, key) {
			t.Errorf("expected %s deleted", key)
		}
		if e.compiler.State(key) != StateMissing {
			t.Errorf("expected %s missing, got %s", key, e.compiler.State(key))
		}
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.invalidated) != 6 {
		t.Errorf("expected 6 invalidations, got %d", len(metrics.invalidated))
	}
}

func TestInvalidator_RecompilesAfterChange(t *testing.T) {
	e := newEnv(t)
	req := e.request(t, "app", false, "")
	if _, err := e.compiler.Serve(context.Background(), req); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	writeFile(t, e.fs, "js/a.js", "var a = 10;")
	if err := NewInvalidator(e.compiler).Invalidate(context.Background(), FileChangeEvent{Path: "js/a.js"}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	res, err := e.compiler.Serve(context.Background(), req)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if string(res.Artifact.Data) != "var a = 10;;var b = 2;;" {
		t.Errorf("expected recompiled artifact, got %q", res.Artifact.Data)
	}
}

func TestInvalidator_UnrelatedFile(t *testing.T) {
	e := newEnv(t)
	keys := serveAll(t, e)

	if err := NewInvalidator(e.compiler).Invalidate(context.Background(), FileChangeEvent{Path: "js/c.js"}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	for _, key := range keys {
		if !exists(t, e, key) {
			t.Errorf("expected %s kept", key)
		}
	}
}

func TestInvalidator_FileWatchDisabled(t *testing.T) {
	e := newEnv(t)
	prod := DefaultProductionOptions()
	if _, err := e.registry.Create("site", JS, "js/a.js").
		WithEnvironmentOptions(DefaultDebugOptions(), prod).
		Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	res, err := e.compiler.Serve(context.Background(), e.request(t, "site", false, ""))
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	if err := NewInvalidator(e.compiler).Invalidate(context.Background(), FileChangeEvent{Path: "js/a.js"}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if !exists(t, e, res.Artifact.Key) {
		t.Error("expected an unwatched namespace to keep its artifact")
	}
}

func TestInvalidator_Composites(t *testing.T) {
	e := newEnv(t)
	opts := DefaultBundleOptions()
	opts.Production.FileWatch = true
	e.compiler.CompositeOptions(opts)

	files := []string{"js/c.js"}
	req, err := ParseCompositeRequest(FormatPath(CompositeKey(files), JS, false, "x"), files, "")
	if err != nil {
		t.Fatalf("ParseCompositeRequest failed: %v", err)
	}
	res, err := e.compiler.Serve(context.Background(), req)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	if err := NewInvalidator(e.compiler).Invalidate(context.Background(), FileChangeEvent{Path: "js/c.js"}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if exists(t, e, res.Artifact.Key) {
		t.Error("expected composite artifact deleted")
	}
	if e.compiler.composites.size() != 0 {
		t.Errorf("expected composite index drained, got %d", e.compiler.composites.size())
	}
}

func TestInvalidator_SyncMode(t *testing.T) {
	e := newEnv(t)
	keys := serveAll(t, e)

	ch := make(chan FileChangeEvent, 2)
	inv := NewInvalidator(e.compiler).SyncMode()
	if err := inv.Start(context.Background(), NewSyncChannelSource(ch)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if inv.Process(context.Background()) {
		t.Error("expected no event to process")
	}

	ch <- FileChangeEvent{Path: "js/a.js"}
	if !inv.Process(context.Background()) {
		t.Fatal("expected an event to process")
	}
	for _, key := range keys {
		if exists(t, e, key) {
			t.Errorf("expected %s deleted", key)
		}
	}

	close(ch)
	if inv.Process(context.Background()) {
		t.Error("expected false after channel close")
	}
}

func TestInvalidator_ProcessRequiresSyncMode(t *testing.T) {
	e := newEnv(t)
	if NewInvalidator(e.compiler).Process(context.Background()) {
		t.Error("expected Process to be a no-op outside sync mode")
	}
}

func TestInvalidator_StartTwice(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := NewInvalidator(e.compiler)
	if err := inv.Start(ctx, NewChannelSource(make(chan FileChangeEvent))); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := inv.Start(ctx, NewChannelSource(make(chan FileChangeEvent))); err == nil {
		t.Error("expected second Start to fail")
	}
}

func TestInvalidator_Debounce(t *testing.T) {
	e := newEnv(t)
	keys := serveAll(t, e)
	metrics := &recordingMetrics{}
	e.compiler.Metrics(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan FileChangeEvent)
	inv := NewInvalidator(e.compiler).Debounce(50 * time.Millisecond).Clock(e.clock)
	if err := inv.Start(ctx, NewChannelSource(ch)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch <- FileChangeEvent{Path: "js/a.js"}
	ch <- FileChangeEvent{Path: "js/a.js"}
	ch <- FileChangeEvent{Path: "js/b.js"}

	// Allow goroutine to receive changes
	time.Sleep(10 * time.Millisecond)

	if !exists(t, e, keys[0]) {
		t.Fatal("expected no invalidation inside the debounce window")
	}

	e.clock.Advance(60 * time.Millisecond)
	e.clock.BlockUntilReady()

	if !waitFor(t, time.Second, func() bool { return !exists(t, e, keys[len(keys)-1]) }) {
		t.Fatal("expected invalidation after the debounce window")
	}

	// a.js deletes all 6 keys; b.js finds nothing left but still counts each
	// delete of an absent artifact.
	if !waitFor(t, time.Second, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return len(metrics.invalidated) == 12
	}) {
		metrics.mu.Lock()
		t.Errorf("expected one invalidation per file, got %d deletes", len(metrics.invalidated))
		metrics.mu.Unlock()
	}
}

func TestInvalidator_FlushOnClose(t *testing.T) {
	e := newEnv(t)
	keys := serveAll(t, e)

	ch := make(chan FileChangeEvent, 1)
	inv := NewInvalidator(e.compiler).Debounce(time.Hour).Clock(e.clock)
	if err := inv.Start(context.Background(), NewChannelSource(ch)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch <- FileChangeEvent{Path: "js/a.js"}
	close(ch)

	if !waitFor(t, time.Second, func() bool { return !exists(t, e, keys[0]) }) {
		t.Error("expected pending changes flushed when the source closes")
	}
}

func serveVariants(t *testing.T, e *env, name string, debug bool) []ArtifactKey {
	t.Helper()
	var keys []ArtifactKey
	for _, enc := range []string{"", "gzip", "deflate"} {
		res, err := e.compiler.Serve(context.Background(), e.request(t, name, debug, enc))
		if err != nil {
			t.Fatalf("Serve(%s) failed: %v", name, err)
		}
		keys = append(keys, res.Artifact.Key)
	}
	return keys
}

func TestInvalidator_LeavesOtherNamespaceAndBundles(t *testing.T) {
	e := newEnv(t)
	writeFile(t, e.fs, "js/d.js", "var d = 4;")
	debug := DefaultDebugOptions()
	debug.FileWatch = true
	if _, err := e.registry.Create("split", JS, "js/d.js").
		WithEnvironmentOptions(debug, DefaultProductionOptions()).
		Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	splitDebug := serveVariants(t, e, "split", true)
	splitProd := serveVariants(t, e, "split", false)
	sibling := serveAll(t, e)

	if err := NewInvalidator(e.compiler).Invalidate(context.Background(), FileChangeEvent{Path: "js/d.js"}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	for _, key := range splitDebug {
		if exists(t, e, key) {
			t.Errorf("expected watched debug variant %s deleted", key)
		}
	}
	for _, key := range splitProd {
		if !exists(t, e, key) {
			t.Errorf("expected unwatched production variant %s kept", key)
		}
	}
	for _, key := range sibling {
		if !exists(t, e, key) {
			t.Errorf("expected sibling bundle artifact %s kept", key)
		}
	}
}
