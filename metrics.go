package bundlez

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key compiler events.
type MetricsProvider interface {
	// OnStateChange is called when an artifact key transitions between states.
	OnStateChange(key ArtifactKey, from, to State)

	// OnCacheHit is called when a request is served from the store.
	OnCacheHit(key ArtifactKey)

	// OnCacheMiss is called when a request finds no artifact.
	OnCacheMiss(key ArtifactKey)

	// OnCompileSuccess is called after an artifact was compiled and stored.
	OnCompileSuccess(key ArtifactKey, duration time.Duration, size int)

	// OnCompileFailure is called when a compile fails.
	// Stage indicates where: "transform", "compress" or "store".
	OnCompileFailure(key ArtifactKey, stage string, duration time.Duration)

	// OnInvalidate is called when an artifact is deleted after a file change.
	OnInvalidate(key ArtifactKey)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_ ArtifactKey, _, _ State)                   {}
func (NoOpMetricsProvider) OnCacheHit(_ ArtifactKey)                                  {}
func (NoOpMetricsProvider) OnCacheMiss(_ ArtifactKey)                                 {}
func (NoOpMetricsProvider) OnCompileSuccess(_ ArtifactKey, _ time.Duration, _ int)    {}
func (NoOpMetricsProvider) OnCompileFailure(_ ArtifactKey, _ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnInvalidate(_ ArtifactKey)                                {}
