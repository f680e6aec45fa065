package bundlez

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a request names an unknown bundle, a malformed
// bundle id, or a composite file that does not exist. It maps to a client
// visible "not found" and never triggers a compile.
var ErrNotFound = errors.New("bundlez: not found")

// ConfigurationError reports invalid registration-time configuration such as
// an unknown cache-buster type or malformed bundle options. It is fatal at
// registration and is never retried.
type ConfigurationError struct {
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bundlez: invalid configuration for %s: %s", e.Subject, e.Reason)
}

func configError(subject, format string, args ...any) error {
	return &ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// TransformError reports a pipeline unit failing on one source file.
// It aborts the current compile only; nothing is cached and the next request
// retries.
type TransformError struct {
	Unit  string
	File  string
	Cause error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("bundlez: transform %q failed on %s: %v", e.Unit, e.File, e.Cause)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// StoreError reports an artifact store operation failure such as a full disk
// or a permission problem.
type StoreError struct {
	Op    string
	Key   ArtifactKey
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("bundlez: store %s %s: %v", e.Op, e.Key.Path(), e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
