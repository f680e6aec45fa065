package bundlez

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Source is the file-store collaborator that bundles read their files from.
// Paths are slash separated and relative to the web root.
type Source interface {
	// ReadFile returns the content of path. Missing files wrap ErrNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether path names a regular file.
	Exists(ctx context.Context, path string) (bool, error)

	// Glob expands a doublestar pattern into matching file paths.
	Glob(pattern string) ([]string, error)
}

// FSSource serves source files from an afero filesystem.
type FSSource struct {
	fs afero.Fs
}

// NewFSSource creates a Source over fs.
func NewFSSource(fs afero.Fs) *FSSource {
	return &FSSource{fs: fs}
}

// NewDirSource creates a Source rooted at dir on the OS filesystem.
func NewDirSource(dir string) *FSSource {
	return NewFSSource(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Fs returns the underlying filesystem.
func (s *FSSource) Fs() afero.Fs {
	return s.fs
}

// ReadFile reads path from the filesystem.
func (s *FSSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	clean, ok := cleanPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	data, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, fmt.Errorf("reading %s: %w", clean, err)
	}
	return data, nil
}

// Exists reports whether path names a regular file.
func (s *FSSource) Exists(_ context.Context, path string) (bool, error) {
	clean, ok := cleanPath(path)
	if !ok {
		return false, nil
	}
	info, err := s.fs.Stat(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", clean, err)
	}
	return !info.IsDir(), nil
}

// Glob expands pattern. Matches are sorted so bundle order is stable.
func (s *FSSource) Glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(afero.NewIOFS(s.fs), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
