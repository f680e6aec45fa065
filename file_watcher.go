package bundlez

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/capitan"
)

// FileWatcher watches a directory tree for changes to JS and CSS files.
type FileWatcher struct {
	root string
}

// NewFileWatcher creates a FileWatcher rooted at dir. Emitted paths are
// relative to dir.
func NewFileWatcher(dir string) *FileWatcher {
	return &FileWatcher{root: dir}
}

// Watch begins watching every directory under the root, including
// directories created later, and emits an event for each write, create,
// remove or rename of a web file.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan FileChangeEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := w.addTree(watcher, w.root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	out := make(chan FileChangeEvent)

	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addTree(watcher, event.Name); err != nil {
							capitan.Emit(ctx, WatcherFailed,
								KeyPath.Field(event.Name),
								KeyError.Field(err.Error()),
							)
						}
						continue
					}
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				rel, ok := w.relative(event.Name)
				if !ok {
					continue
				}

				select {
				case out <- FileChangeEvent{Path: rel}:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Continue watching despite errors
				capitan.Emit(ctx, WatcherFailed,
					KeyPath.Field(w.root),
					KeyError.Field(err.Error()),
				)
			}
		}
	}()

	return out, nil
}

func (w *FileWatcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(p)
	})
}

// relative maps an absolute event path to a web file path under the root.
func (w *FileWatcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if _, ok := TypeOf(rel); !ok {
		return "", false
	}
	clean, ok := cleanPath(rel)
	if !ok {
		return "", false
	}
	return clean, true
}
