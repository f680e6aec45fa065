package bundlez

import "github.com/zoobzio/capitan"

// Registry signals.
var (
	// BundleRegistered is emitted when a bundle definition is accepted.
	BundleRegistered = capitan.NewSignal(
		"bundlez.bundle.registered",
		"Bundle registered",
	)
)

// Compile signals.
var (
	// ArtifactServed is emitted when a request is served from the store.
	ArtifactServed = capitan.NewSignal(
		"bundlez.artifact.served",
		"Artifact served from store",
	)

	// ArtifactMissed is emitted when a request finds no cached artifact.
	ArtifactMissed = capitan.NewSignal(
		"bundlez.artifact.missed",
		"Artifact missing from store",
	)

	// CompileStateChanged is emitted when an artifact key changes state.
	CompileStateChanged = capitan.NewSignal(
		"bundlez.compile.state.changed",
		"Compile state transition",
	)

	// CompileStarted is emitted when a caller starts compiling a key.
	CompileStarted = capitan.NewSignal(
		"bundlez.compile.started",
		"Compile started",
	)

	// CompileSucceeded is emitted when an artifact was compiled and stored.
	CompileSucceeded = capitan.NewSignal(
		"bundlez.compile.succeeded",
		"Compile succeeded",
	)

	// TransformFellBack is emitted when a file's chain failed and its raw
	// source was used instead (see WithFallbackToSource).
	TransformFellBack = capitan.NewSignal(
		"bundlez.transform.fell_back",
		"Transform fell back to source",
	)

	// CompileFailed is emitted when a compile fails. Nothing is cached.
	CompileFailed = capitan.NewSignal(
		"bundlez.compile.failed",
		"Compile failed",
	)
)

// Invalidation signals.
var (
	// InvalidatorStarted is emitted when the invalidator begins consuming events.
	InvalidatorStarted = capitan.NewSignal(
		"bundlez.invalidator.started",
		"Invalidator started",
	)

	// InvalidatorStopped is emitted when the invalidator stops consuming events.
	InvalidatorStopped = capitan.NewSignal(
		"bundlez.invalidator.stopped",
		"Invalidator stopped",
	)

	// FileChanged is emitted for every file change event received.
	FileChanged = capitan.NewSignal(
		"bundlez.file.changed",
		"Source file changed",
	)

	// ArtifactInvalidated is emitted when an artifact is deleted after a change.
	ArtifactInvalidated = capitan.NewSignal(
		"bundlez.artifact.invalidated",
		"Artifact invalidated",
	)

	// InvalidationFailed is emitted when an artifact could not be deleted.
	InvalidationFailed = capitan.NewSignal(
		"bundlez.invalidation.failed",
		"Artifact invalidation failed",
	)

	// WatcherFailed is emitted when the file watcher reports an error.
	WatcherFailed = capitan.NewSignal(
		"bundlez.watcher.failed",
		"File watcher error",
	)
)
