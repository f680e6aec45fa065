package bundlez

import "github.com/zoobzio/capitan"

// Field keys for bundlez events.
var (
	// KeyBundle is the bundle name or composite key.
	KeyBundle = capitan.NewStringKey("bundle")

	// KeyFileType is the web file type, js or css.
	KeyFileType = capitan.NewStringKey("file_type")

	// KeyFiles is the number of files in a bundle.
	KeyFiles = capitan.NewIntKey("files")

	// KeyArtifact is the store path of an artifact key.
	KeyArtifact = capitan.NewStringKey("artifact")

	// KeyToken is the cache-buster token of an artifact.
	KeyToken = capitan.NewStringKey("token")

	// KeyCompression is the compression variant of an artifact.
	KeyCompression = capitan.NewStringKey("compression")

	// KeyDebug reports whether an artifact is in the debug namespace.
	KeyDebug = capitan.NewBoolKey("debug")

	// KeyPath is a source file path.
	KeyPath = capitan.NewStringKey("path")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyStage is where a compile failed.
	KeyStage = capitan.NewStringKey("stage")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDuration is how long a compile took.
	KeyDuration = capitan.NewDurationKey("duration")

	// KeySize is the artifact size in bytes.
	KeySize = capitan.NewIntKey("size")
)
