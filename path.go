package bundlez

import (
	"encoding/hex"
	"path"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	productionMarker = 'v'
	debugMarker      = 'd'
)

// ParsedPath is the decoded form of a bundle or composite identifier.
type ParsedPath struct {
	// Name is the bundle name, or the composite key for composite requests.
	Name  string
	Type  WebFileType
	Debug bool
	// Token is the cache-buster value the URL was minted with.
	Token string
}

// FormatPath encodes a bundle identifier as {name}.{ext}.{v|d}{token}.
func FormatPath(name string, t WebFileType, debug bool, token string) string {
	marker := productionMarker
	if debug {
		marker = debugMarker
	}
	return name + "." + t.String() + "." + string(marker) + token
}

// ParsePath decodes an identifier produced by FormatPath. Names may contain
// dots; the last two segments are always the extension and the marked token.
func ParsePath(id string) (ParsedPath, error) {
	var p ParsedPath

	i := strings.LastIndexByte(id, '.')
	if i <= 0 || i == len(id)-1 {
		return p, ErrNotFound
	}
	marker := id[i+1:]
	rest := id[:i]

	j := strings.LastIndexByte(rest, '.')
	if j <= 0 {
		return p, ErrNotFound
	}
	t, ok := ParseWebFileType(rest[j+1:])
	if !ok {
		return p, ErrNotFound
	}

	switch marker[0] {
	case productionMarker:
	case debugMarker:
		p.Debug = true
	default:
		return p, ErrNotFound
	}
	p.Token = marker[1:]
	if p.Token == "" {
		return p, ErrNotFound
	}

	p.Name = rest[:j]
	if strings.ContainsAny(p.Name, `/\`) {
		return p, ErrNotFound
	}
	p.Type = t
	return p, nil
}

// Target is what a request asks to be served: a registered bundle or an ad-hoc
// composite. The set of implementations is closed.
type Target interface {
	target()
}

// BundleRequest targets a registered bundle by name.
type BundleRequest struct {
	Name string
}

// CompositeRequest targets an explicit file list. Key must equal
// CompositeKey(Files).
type CompositeRequest struct {
	Key   string
	Files []string
}

func (BundleRequest) target()    {}
func (CompositeRequest) target() {}

// ParsedRequest is one inbound request after decoding. It is immutable.
type ParsedRequest struct {
	ID          string
	Type        WebFileType
	Debug       bool
	Token       string
	Compression Compression
	Target      Target
}

// ParseBundleRequest decodes a bundle endpoint request.
func ParseBundleRequest(id, acceptEncoding string) (ParsedRequest, error) {
	p, err := ParsePath(id)
	if err != nil {
		return ParsedRequest{}, err
	}
	return ParsedRequest{
		ID:          id,
		Type:        p.Type,
		Debug:       p.Debug,
		Token:       p.Token,
		Compression: NegotiateCompression(acceptEncoding),
		Target:      BundleRequest{Name: p.Name},
	}, nil
}

// ParseCompositeRequest decodes a composite endpoint request. The file list is
// cleaned and checked against the key so arbitrary lists cannot be cached
// under a foreign key.
func ParseCompositeRequest(id string, files []string, acceptEncoding string) (ParsedRequest, error) {
	p, err := ParsePath(id)
	if err != nil {
		return ParsedRequest{}, err
	}
	if len(files) == 0 {
		return ParsedRequest{}, ErrNotFound
	}
	cleaned := make([]string, len(files))
	for i, f := range files {
		c, ok := cleanPath(f)
		if !ok {
			return ParsedRequest{}, ErrNotFound
		}
		if t, ok := TypeOf(c); !ok || t != p.Type {
			return ParsedRequest{}, ErrNotFound
		}
		cleaned[i] = c
	}
	if CompositeKey(cleaned) != p.Name {
		return ParsedRequest{}, ErrNotFound
	}
	return ParsedRequest{
		ID:          id,
		Type:        p.Type,
		Debug:       p.Debug,
		Token:       p.Token,
		Compression: NegotiateCompression(acceptEncoding),
		Target:      CompositeRequest{Key: p.Name, Files: cleaned},
	}, nil
}

// CompositeKey derives the opaque key of an ordered file list.
func CompositeKey(files []string) string {
	sum := blake3.Sum256([]byte(strings.Join(files, "\n")))
	return hex.EncodeToString(sum[:12])
}

// cleanPath normalizes a web root relative path and rejects escapes.
func cleanPath(p string) (string, bool) {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "", false
	}
	return p, true
}

// NegotiateCompression picks the best encoding the client accepts. gzip is
// preferred over deflate; a zero quality excludes an encoding. "*" accepts
// only the codings the header does not name.
func NegotiateCompression(acceptEncoding string) Compression {
	listed := make(map[Compression]bool, 2)
	accepted := make(map[Compression]bool, 2)
	var wildcard bool
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		ok := !rejected(params)
		switch name {
		case "gzip", "x-gzip":
			listed[CompressionGzip] = true
			accepted[CompressionGzip] = accepted[CompressionGzip] || ok
		case "deflate":
			listed[CompressionDeflate] = true
			accepted[CompressionDeflate] = accepted[CompressionDeflate] || ok
		case "*":
			wildcard = ok
		}
	}
	for _, c := range []Compression{CompressionGzip, CompressionDeflate} {
		if accepted[c] || (wildcard && !listed[c]) {
			return c
		}
	}
	return CompressionNone
}

func rejected(params string) bool {
	for _, param := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(k) != "q" {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && q == 0
	}
	return false
}
