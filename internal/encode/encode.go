// Package encode turns resolved resources into data URLs.
//
// Policy, in order:
//   - text/*          data:<type>;charset=utf-8,<percent-encoded>
//   - image/svg+xml   data:image/svg+xml,<percent-encoded optimized SVG>
//   - anything else   data:<type>;base64,<standard base64>
//
// An inline form longer than MaxSize is discarded and the original reference
// is returned instead.
package encode

import (
	"encoding/base64"
	"strings"

	"github.com/alnah/go-htmlinline/internal/resource"
)

// DefaultMaxSize is the longest inline form Encode emits, in bytes.
const DefaultMaxSize = 10000

const svgType = "image/svg+xml"

// Encoder builds data URLs. The zero value is usable: it applies
// DefaultMaxSize and does not optimize SVG.
type Encoder struct {
	// MaxSize caps the inline form length; 0 means DefaultMaxSize and a
	// negative value disables the cap.
	MaxSize int

	// OptimizeSVG rewrites SVG text before encoding. On error the
	// unoptimized text is used.
	OptimizeSVG func(svg string) (string, error)
}

// Encode returns the inline form of r and true, or r.Reference and false
// when the inline form would exceed the size ceiling.
// Output depends only on the payload, content type and encoder settings.
func (e Encoder) Encode(r resource.Resource) (string, bool) {
	inline := e.inline(r)

	limit := e.MaxSize
	if limit == 0 {
		limit = DefaultMaxSize
	}
	if limit > 0 && len(inline) > limit {
		return r.Reference, false
	}
	return inline, true
}

func (e Encoder) inline(r resource.Resource) string {
	ct := strings.ToLower(r.ContentType)
	if ct == "" {
		ct = resource.DefaultContentType
	}

	switch {
	case strings.HasPrefix(ct, "text/"):
		return "data:" + ct + ";charset=utf-8," + PercentEncode(r.Payload)
	case ct == svgType:
		svg := string(r.Payload)
		if e.OptimizeSVG != nil {
			if out, err := e.OptimizeSVG(svg); err == nil {
				svg = out
			}
		}
		return "data:" + svgType + "," + PercentEncode([]byte(svg))
	default:
		return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(r.Payload)
	}
}

// PercentEncode escapes every byte outside A-Z a-z 0-9 - _ . ~ as %XX.
// The result is safe inside quoted and unquoted CSS url() arguments and
// HTML attribute values.
func PercentEncode(b []byte) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for _, c := range b {
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0F])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
