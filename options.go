package bundlez

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Option wraps the per-file chain of a Pipeline with resilience behaviour.
// Options are applied in order, the last one outermost.
type Option func(pipz.Chainable[*fileWork]) pipz.Chainable[*fileWork]

var (
	retryID   = pipz.NewIdentity("bundlez:retry", "Retries a file's chain")
	backoffID = pipz.NewIdentity("bundlez:backoff", "Retries a file's chain with exponential backoff")
)

// WithRetry re-runs a failing file's chain up to maxAttempts times. Each
// attempt restarts from the raw source. Useful for sources that are briefly
// locked by another process.
func WithRetry(maxAttempts int) Option {
	return func(p pipz.Chainable[*fileWork]) pipz.Chainable[*fileWork] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff is WithRetry with delays of baseDelay, 2*baseDelay, 4*baseDelay
// and so on between attempts.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(p pipz.Chainable[*fileWork]) pipz.Chainable[*fileWork] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

var fallbackID = pipz.NewIdentity("bundlez:fallback", "Serves the raw source when the chain fails")

// WithFallbackToSource serves a file's untransformed source when its chain
// fails, so one bad file degrades the artifact instead of failing it. Each
// fallback emits TransformFellBack.
func WithFallbackToSource() Option {
	return func(p pipz.Chainable[*fileWork]) pipz.Chainable[*fileWork] {
		return pipz.Apply(fallbackID, func(ctx context.Context, w *fileWork) (*fileWork, error) {
			if _, err := p.Process(ctx, w); err != nil {
				msg := err.Error()
				if w.failure != nil {
					msg = w.failure.Error()
				}
				capitan.Emit(ctx, TransformFellBack,
					KeyBundle.Field(w.cc.Name),
					KeyPath.Field(w.file.Path),
					KeyError.Field(msg),
				)
				w.rewind()
			}
			return w, nil
		})
	}
}
