package main

import (
	"context"
	"log/slog"

	"github.com/zoobzio/bundlez"
	"github.com/zoobzio/capitan"
)

// hookLogger routes bundlez signals to logger. Per-request signals log at
// debug level; failures and lifecycle events at info or above.
func hookLogger(logger *slog.Logger) {
	capitan.Hook(bundlez.BundleRegistered, func(ctx context.Context, e *capitan.Event) {
		name, _ := bundlez.KeyBundle.From(e)
		fileType, _ := bundlez.KeyFileType.From(e)
		files, _ := bundlez.KeyFiles.From(e)
		logger.InfoContext(ctx, "bundle registered", "bundle", name, "type", fileType, "files", files)
	})

	capitan.Hook(bundlez.ArtifactServed, func(ctx context.Context, e *capitan.Event) {
		artifact, _ := bundlez.KeyArtifact.From(e)
		logger.DebugContext(ctx, "artifact served", "artifact", artifact)
	})

	capitan.Hook(bundlez.CompileSucceeded, func(ctx context.Context, e *capitan.Event) {
		artifact, _ := bundlez.KeyArtifact.From(e)
		duration, _ := bundlez.KeyDuration.From(e)
		size, _ := bundlez.KeySize.From(e)
		logger.DebugContext(ctx, "artifact compiled", "artifact", artifact, "duration", duration, "bytes", size)
	})

	capitan.Hook(bundlez.CompileFailed, func(ctx context.Context, e *capitan.Event) {
		name, _ := bundlez.KeyBundle.From(e)
		stage, _ := bundlez.KeyStage.From(e)
		msg, _ := bundlez.KeyError.From(e)
		logger.ErrorContext(ctx, "compile failed", "bundle", name, "stage", stage, "error", msg)
	})

	capitan.Hook(bundlez.ArtifactInvalidated, func(ctx context.Context, e *capitan.Event) {
		artifact, _ := bundlez.KeyArtifact.From(e)
		logger.InfoContext(ctx, "artifact invalidated", "artifact", artifact)
	})

	capitan.Hook(bundlez.InvalidationFailed, func(ctx context.Context, e *capitan.Event) {
		artifact, _ := bundlez.KeyArtifact.From(e)
		msg, _ := bundlez.KeyError.From(e)
		logger.ErrorContext(ctx, "invalidation failed", "artifact", artifact, "error", msg)
	})

	capitan.Hook(bundlez.WatcherFailed, func(ctx context.Context, e *capitan.Event) {
		path, _ := bundlez.KeyPath.From(e)
		msg, _ := bundlez.KeyError.From(e)
		logger.WarnContext(ctx, "file watcher error", "path", path, "error", msg)
	})

	capitan.Hook(bundlez.InvalidatorStopped, func(ctx context.Context, _ *capitan.Event) {
		logger.InfoContext(ctx, "file watcher stopped")
	})
}
