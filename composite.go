package bundlez

import (
	"slices"
	"strings"
	"sync"
)

// compositeIndex records which compiled composite artifacts contain which
// source files, so a file change can find them without listing the store.
type compositeIndex struct {
	mu     sync.Mutex
	byPath map[string]map[ArtifactKey]struct{}
	byKey  map[ArtifactKey][]string
}

func newCompositeIndex() *compositeIndex {
	return &compositeIndex{
		byPath: make(map[string]map[ArtifactKey]struct{}),
		byKey:  make(map[ArtifactKey][]string),
	}
}

func (x *compositeIndex) add(files []SourceFile, key ArtifactKey) {
	x.mu.Lock()
	defer x.mu.Unlock()

	paths := make([]string, 0, len(files))
	for _, f := range files {
		keys, ok := x.byPath[f.Path]
		if !ok {
			keys = make(map[ArtifactKey]struct{})
			x.byPath[f.Path] = keys
		}
		keys[key] = struct{}{}
		paths = append(paths, f.Path)
	}
	x.byKey[key] = paths
}

// take removes and returns every composite key containing path.
func (x *compositeIndex) take(path string) []ArtifactKey {
	x.mu.Lock()
	defer x.mu.Unlock()

	keys := make([]ArtifactKey, 0, len(x.byPath[path]))
	for k := range x.byPath[path] {
		keys = append(keys, k)
	}
	for _, k := range keys {
		for _, p := range x.byKey[k] {
			delete(x.byPath[p], k)
			if len(x.byPath[p]) == 0 {
				delete(x.byPath, p)
			}
		}
		delete(x.byKey, k)
	}
	slices.SortFunc(keys, func(a, b ArtifactKey) int {
		return strings.Compare(a.Path(), b.Path())
	})
	return keys
}

func (x *compositeIndex) size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byKey)
}
