// Package server exposes a bundlez Compiler over HTTP.
//
// Two endpoints are mapped, each exactly once:
//
//	GET {bundlePath}/{name}.{ext}.{v|d}{token}
//	GET {compositePath}/{key}.{ext}.{v|d}{token}?f=path&f=path
package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"github.com/zoobzio/bundlez"
)

// Server serves compiled artifacts.
type Server struct {
	compiler      *bundlez.Compiler
	bundlePath    string
	compositePath string

	once sync.Once
	mux  *http.ServeMux
}

// New creates a Server for compiler using the default endpoint prefixes.
func New(compiler *bundlez.Compiler) *Server {
	return &Server{
		compiler:      compiler,
		bundlePath:    bundlez.DefaultBundlePath,
		compositePath: bundlez.DefaultCompositePath,
	}
}

// BundlePath sets the prefix of the bundle endpoint. Must be called before
// Handler.
func (s *Server) BundlePath(p string) *Server {
	s.bundlePath = strings.TrimRight(p, "/")
	return s
}

// CompositePath sets the prefix of the composite endpoint. Must be called
// before Handler.
func (s *Server) CompositePath(p string) *Server {
	s.compositePath = strings.TrimRight(p, "/")
	return s
}

// Handler returns the HTTP handler. Routes are registered on first call;
// later calls return the same handler.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		s.mux = http.NewServeMux()
		s.mux.HandleFunc("GET "+s.bundlePath+"/{id}", s.handleBundle)
		s.mux.HandleFunc("GET "+s.compositePath+"/{id}", s.handleComposite)
	})
	return s.mux
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	req, err := bundlez.ParseBundleRequest(r.PathValue("id"), r.Header.Get("Accept-Encoding"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.serve(w, r, req)
}

func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	files := r.URL.Query()[bundlez.CompositeFilesParam]
	req, err := bundlez.ParseCompositeRequest(r.PathValue("id"), files, r.Header.Get("Accept-Encoding"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.serve(w, r, req)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, req bundlez.ParsedRequest) {
	result, err := s.compiler.Serve(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", result.Type.MIME()+"; charset=utf-8")
	h.Set("Vary", "Accept-Encoding")
	if result.CacheControl.MaxAge > 0 {
		h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(result.CacheControl.MaxAge.Seconds())))
	} else {
		h.Set("Cache-Control", "no-cache")
	}

	data := result.Artifact.Data
	if result.CacheControl.ETag {
		etag := ETag(data)
		h.Set("ETag", etag)
		if matches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if c := result.Artifact.Key.Compression; c != bundlez.CompressionNone {
		h.Set("Content-Encoding", c.String())
	}
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data) //nolint:errcheck // Client went away
	}
}

// ETag returns the strong entity tag of an artifact body.
func ETag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func matches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// writeError maps compile errors to status codes. A transform failure is a
// server fault even when its cause is a missing file.
func writeError(w http.ResponseWriter, err error) {
	var transformErr *bundlez.TransformError
	switch {
	case errors.As(err, &transformErr):
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	case errors.Is(err, bundlez.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
