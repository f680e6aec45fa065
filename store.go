package bundlez

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// compositeNamespace prefixes composite keys. Bundle names cannot contain a
// path separator, so the two never collide.
const compositeNamespace = "composite/"

// ArtifactKey addresses exactly one artifact.
type ArtifactKey struct {
	Name        string
	Token       string
	Compression Compression
	Debug       bool
}

// Path is the deterministic store path of the key,
// {token}/{debug|release}/{compression}/{name}.bundle.
func (k ArtifactKey) Path() string {
	ns := "release"
	if k.Debug {
		ns = "debug"
	}
	return path.Join(k.Token, ns, k.Compression.String(), k.Name+".bundle")
}

// String implements fmt.Stringer.
func (k ArtifactKey) String() string {
	return k.Path()
}

// Artifact is a persisted combined, optionally compressed, byte sequence.
type Artifact struct {
	Key     ArtifactKey
	Data    []byte
	ModTime time.Time
}

// Store persists artifacts. Writes must never be observable half done.
type Store interface {
	Exists(ctx context.Context, key ArtifactKey) (bool, error)
	Read(ctx context.Context, key ArtifactKey) (*Artifact, error)
	Write(ctx context.Context, key ArtifactKey, data []byte) error
	Delete(ctx context.Context, key ArtifactKey) error
}

// DiskStore keeps artifacts on an afero filesystem. Writes go to a temporary
// file in the target directory and are renamed into place.
type DiskStore struct {
	fs afero.Fs
}

// NewDiskStore creates a store over fs.
func NewDiskStore(fs afero.Fs) *DiskStore {
	return &DiskStore{fs: fs}
}

// NewDirStore creates a store rooted at dir on the OS filesystem.
func NewDirStore(dir string) *DiskStore {
	return NewDiskStore(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Exists reports whether the artifact is present.
func (s *DiskStore) Exists(_ context.Context, key ArtifactKey) (bool, error) {
	ok, err := afero.Exists(s.fs, key.Path())
	if err != nil {
		return false, &StoreError{Op: "stat", Key: key, Cause: err}
	}
	return ok, nil
}

// Read loads the artifact. A missing artifact wraps ErrNotFound.
func (s *DiskStore) Read(_ context.Context, key ArtifactKey) (*Artifact, error) {
	p := key.Path()
	info, err := s.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, p)
		}
		return nil, &StoreError{Op: "stat", Key: key, Cause: err}
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, p)
		}
		return nil, &StoreError{Op: "read", Key: key, Cause: err}
	}
	return &Artifact{Key: key, Data: data, ModTime: info.ModTime()}, nil
}

// Write publishes data under key atomically.
func (s *DiskStore) Write(_ context.Context, key ArtifactKey, data []byte) error {
	p := key.Path()
	dir := path.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return &StoreError{Op: "mkdir", Key: key, Cause: err}
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return &StoreError{Op: "create", Key: key, Cause: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &StoreError{Op: "write", Key: key, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &StoreError{Op: "close", Key: key, Cause: err}
	}
	if err := s.fs.Rename(tmp.Name(), p); err != nil {
		return &StoreError{Op: "rename", Key: key, Cause: err}
	}
	committed = true
	return nil
}

// Delete removes the artifact. Removing a missing artifact is a no-op.
func (s *DiskStore) Delete(_ context.Context, key ArtifactKey) error {
	err := s.fs.Remove(key.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StoreError{Op: "delete", Key: key, Cause: err}
	}
	return nil
}

// Compress encodes data for variant c.
func Compress(c Compression, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case CompressionDeflate:
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
	return buf.Bytes(), nil
}
