package resource

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/alnah/go-htmlinline/internal/fileutil"
)

// Normalize strips surrounding whitespace and matching quote pairs until
// nothing more can be stripped. The result is the cache key of a reference.
//
// Examples:
//   - `"foo.png"` -> `foo.png`
//   - ` ' "foo.png" ' ` -> `foo.png`
//   - `'foo.png"` -> `'foo.png"` (asymmetric quotes are kept)
func Normalize(ref string) string {
	s := strings.TrimSpace(ref)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first != last || (first != '"' && first != '\'') {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// IsIgnorable reports whether a normalized reference is an intra-document
// anchor or an already inlined data URL. Such references are never fetched.
func IsIgnorable(ref string) bool {
	return strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "data:")
}

// Classifier decides what kind of source a reference denotes.
// It only reads filesystem metadata; it never reads file contents.
type Classifier struct {
	fs          afero.Fs
	preferLocal bool
}

// NewClassifier creates a Classifier checking local paths against fs.
// With preferLocal, an http(s) URL whose path exists under the base
// directory is classified as LocalPath, which lets a local mirror of a
// published site stand in for the network.
func NewClassifier(fs afero.Fs, preferLocal bool) *Classifier {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Classifier{fs: fs, preferLocal: preferLocal}
}

// Classify normalizes ref and classifies it relative to baseDir.
// The returned error is nil for fetchable kinds and wraps
// ErrIgnorableReference or ErrInvalidReference otherwise.
func (c *Classifier) Classify(ref, baseDir string) (Target, error) {
	key := Normalize(ref)
	t := Target{Reference: key, Kind: Invalid}

	if key == "" {
		return t, fmt.Errorf("%w: empty", ErrInvalidReference)
	}
	if IsIgnorable(key) {
		t.Kind = Ignorable
		return t, fmt.Errorf("%w: %s", ErrIgnorableReference, truncate(key))
	}

	u, parseErr := url.Parse(key)
	if parseErr == nil && isURLScheme(u.Scheme) {
		switch strings.ToLower(u.Scheme) {
		case "data":
			t.Kind = DataURI
			t.URL = u
			return t, nil
		case "http", "https":
			if c.preferLocal {
				if p, ok := c.localPath(u.Path, baseDir); ok {
					t.Kind = LocalPath
					t.Path = p
					return t, nil
				}
			}
			if u.Host == "" {
				return t, fmt.Errorf("%w: missing host in %s", ErrInvalidReference, key)
			}
			t.Kind = RemoteHTTP
			t.URL = u
			return t, nil
		default:
			if p, ok := c.localPath(u.Path, baseDir); ok {
				t.Kind = LocalPath
				t.Path = p
				return t, nil
			}
			return t, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidReference, u.Scheme)
		}
	}

	// Plain path: the literal string first, then its URL path with the query
	// and fragment stripped and percent-escapes decoded.
	candidates := []string{key}
	if parseErr == nil && u.Path != "" && u.Path != key {
		candidates = append(candidates, u.Path)
	}
	for _, cand := range candidates {
		p, err := c.joinUnder(cand, baseDir)
		if err != nil {
			return t, err
		}
		if fileutil.FileExists(c.fs, p) {
			t.Kind = LocalPath
			t.Path = p
			return t, nil
		}
	}

	return t, fmt.Errorf("%w: no such file %s", ErrInvalidReference, key)
}

// localPath joins an URL path to baseDir and reports whether a file exists there.
func (c *Classifier) localPath(urlPath, baseDir string) (string, bool) {
	if urlPath == "" {
		return "", false
	}
	p, err := c.joinUnder(urlPath, baseDir)
	if err != nil {
		return "", false
	}
	return p, fileutil.FileExists(c.fs, p)
}

// joinUnder joins rel to baseDir and rejects results that escape baseDir.
// A leading slash is rooted at baseDir, like a site root.
func (c *Classifier) joinUnder(rel, baseDir string) (string, error) {
	p := filepath.Join(baseDir, filepath.FromSlash(rel))
	if !fileutil.IsPathUnderDir(p, baseDir) {
		return "", fmt.Errorf("%w: %w: %s", ErrInvalidReference, ErrPathTraversal, rel)
	}
	return p, nil
}

// isURLScheme reports whether scheme makes a reference an absolute URL.
// Single letters are Windows drive names, not schemes.
func isURLScheme(scheme string) bool {
	return len(scheme) > 1
}

// truncate shortens long references (typically data URLs) for messages.
func truncate(s string) string {
	const maxLen = 64
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
