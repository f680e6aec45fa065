package bundlez

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	importPattern = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*)?["']?([^"')\s;]+)["']?\s*\)?([^;]*);`)
	urlPattern    = regexp.MustCompile(`(?i)url\(\s*(["']?)([^"')]+?)(["']?)\s*\)`)
)

// importedKey is the scratch space entry tracking files already inlined
// during one compile.
const importedKey = "css.import.seen"

// maxImportDepth bounds nested @import inlining.
const maxImportDepth = 8

// CSSImportInliner replaces local @import rules with the imported file's
// content. Remote imports and imports with media queries are kept. A file is
// inlined at most once per compile; later imports of it are dropped.
type CSSImportInliner struct{}

// NewCSSImportInliner creates the default import unit.
func NewCSSImportInliner() *CSSImportInliner {
	return &CSSImportInliner{}
}

// Name returns UnitCSSImport.
func (*CSSImportInliner) Name() string { return UnitCSSImport }

// Kind returns KindImport.
func (*CSSImportInliner) Kind() Kind { return KindImport }

// Apply inlines the imports of content.
func (u *CSSImportInliner) Apply(ctx context.Context, cc *CompileContext, file SourceFile, content string) (string, error) {
	return u.inline(ctx, cc, file.Path, content, 0)
}

func (u *CSSImportInliner) inline(ctx context.Context, cc *CompileContext, filePath, content string, depth int) (string, error) {
	matches := importPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}
	if depth >= maxImportDepth {
		return "", fmt.Errorf("@import nesting deeper than %d in %s", maxImportDepth, filePath)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(content[last:m[0]])
		last = m[1]

		ref := content[m[2]:m[3]]
		media := strings.TrimSpace(content[m[4]:m[5]])
		if media != "" || isRemoteRef(ref) {
			b.WriteString(content[m[0]:m[1]])
			continue
		}

		target := resolveRef(filePath, ref)
		if !cc.markImported(target) {
			continue
		}
		raw, err := cc.ReadFile(ctx, target)
		if err != nil {
			return "", fmt.Errorf("reading import %s: %w", target, err)
		}
		nested, err := u.inline(ctx, cc, target, rewriteURLs(string(raw), target), depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(nested)
		b.WriteString("\n")
	}
	b.WriteString(content[last:])
	return b.String(), nil
}

// CSSURLRewriter rewrites relative url() references to root-absolute paths
// so they survive being served from the bundle endpoint.
type CSSURLRewriter struct{}

// NewCSSURLRewriter creates the default url rewriting unit.
func NewCSSURLRewriter() *CSSURLRewriter {
	return &CSSURLRewriter{}
}

// Name returns UnitCSSURL.
func (*CSSURLRewriter) Name() string { return UnitCSSURL }

// Kind returns KindURL.
func (*CSSURLRewriter) Kind() Kind { return KindURL }

// Apply rewrites the relative references in content.
func (*CSSURLRewriter) Apply(_ context.Context, _ *CompileContext, file SourceFile, content string) (string, error) {
	return rewriteURLs(content, file.Path), nil
}

func rewriteURLs(content, filePath string) string {
	return urlPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := urlPattern.FindStringSubmatch(match)
		ref := strings.TrimSpace(sub[2])
		if isExternalRef(ref) {
			return match
		}
		return "url(" + sub[1] + resolveRef(filePath, ref) + sub[3] + ")"
	})
}

// resolveRef resolves ref against the directory of filePath. Query strings
// and fragments are preserved.
func resolveRef(filePath, ref string) string {
	suffix := ""
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref, suffix = ref[:i], ref[i:]
	}
	if strings.HasPrefix(ref, "/") {
		return path.Clean(ref) + suffix
	}
	return "/" + strings.TrimPrefix(path.Join("/", path.Dir(filePath), ref), "/") + suffix
}

// isExternalRef reports references the url rewriter leaves alone.
func isExternalRef(ref string) bool {
	return isRemoteRef(ref) || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "#")
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "data:") ||
		strings.HasPrefix(ref, "//") ||
		strings.Contains(ref, "://")
}
