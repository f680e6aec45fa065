package bundlez

import (
	"path"
	"strings"
)

// WebFileType is the kind of web asset a bundle or request carries.
type WebFileType int

const (
	// JS identifies JavaScript assets.
	JS WebFileType = iota
	// CSS identifies stylesheet assets.
	CSS
)

// String returns the file extension without the leading dot.
func (t WebFileType) String() string {
	switch t {
	case JS:
		return "js"
	case CSS:
		return "css"
	default:
		return "unknown"
	}
}

// Extension returns the file extension including the leading dot.
func (t WebFileType) Extension() string {
	return "." + t.String()
}

// MIME returns the Content-Type served for the file type.
func (t WebFileType) MIME() string {
	if t == JS {
		return "text/javascript"
	}
	return "text/css"
}

// ParseWebFileType maps an extension (with or without the dot) to a type.
func ParseWebFileType(ext string) (WebFileType, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "js":
		return JS, true
	case "css":
		return CSS, true
	default:
		return 0, false
	}
}

// TypeOf derives the file type from a path's extension.
func TypeOf(p string) (WebFileType, bool) {
	return ParseWebFileType(path.Ext(p))
}

// SourceFile is one file of a bundle: a slash separated path relative to the
// web root plus its declared type.
type SourceFile struct {
	Path string
	Type WebFileType
}

// TransformedFile is a source file after its pipeline ran.
type TransformedFile struct {
	SourceFile
	Content string
}

// Compression is a compression variant. Each variant is cached separately.
type Compression int

const (
	// CompressionNone serves the combined artifact as is.
	CompressionNone Compression = iota
	// CompressionDeflate serves a raw DEFLATE stream.
	CompressionDeflate
	// CompressionGzip serves a gzip stream.
	CompressionGzip
)

// Compressions lists every variant, the order invalidation walks them in.
var Compressions = []Compression{CompressionDeflate, CompressionGzip, CompressionNone}

// String returns the variant name, which doubles as the Content-Encoding token.
func (c Compression) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionGzip:
		return "gzip"
	default:
		return "none"
	}
}
