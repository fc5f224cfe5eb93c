package pipeline

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-htmlinline/internal/format"
	"github.com/alnah/go-htmlinline/internal/resource"
)

// StylesheetRewriter replaces url() references in CSS text with data URLs.
//
// Steps: minify, scan url() spans, resolve distinct arguments concurrently,
// substitute, pretty-print. Text outside url() spans is never modified by
// the substitution step. url(data:...) functions are hidden from the
// minifier, which would otherwise re-encode them.
type StylesheetRewriter struct {
	resolver    Resolver
	encoder     Encoder
	minify      format.Func
	pretty      format.Func
	logger      *zap.Logger
	concurrency int
}

// NewStylesheetRewriter creates a rewriter from cfg.
func NewStylesheetRewriter(cfg Config) *StylesheetRewriter {
	cfg = cfg.withDefaults()
	return &StylesheetRewriter{
		resolver:    cfg.Resolver,
		encoder:     cfg.Encoder,
		minify:      cfg.Collaborators.MinifyCSS,
		pretty:      cfg.Collaborators.PrettyCSS,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Rewrite returns css with every resolvable url() argument inlined.
// Relative references are resolved against baseDir. Collaborator and
// resolution failures are logged and leave the affected text as it was.
func (r *StylesheetRewriter) Rewrite(ctx context.Context, css, baseDir string) string {
	masked, dataURLs := maskDataURLs(css)
	text, err := format.Apply(r.minify, masked)
	if err != nil {
		r.logger.Warn("css minify failed", zap.Error(err))
	}
	text = unmaskDataURLs(text, dataURLs)

	spans := scanURLs(text)
	resolved := r.resolveAll(ctx, spans, baseDir)

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for _, sp := range spans {
		sb.WriteString(text[last:sp.start])
		sb.WriteString(r.replacement(sp, resolved))
		last = sp.end
	}
	sb.WriteString(text[last:])

	out, err := format.Apply(r.pretty, sb.String())
	if err != nil {
		r.logger.Warn("css pretty-print failed", zap.Error(err))
	}
	return out
}

// resolveAll resolves each distinct fetchable argument once, concurrently.
func (r *StylesheetRewriter) resolveAll(ctx context.Context, spans []urlSpan, baseDir string) map[string]resource.Resource {
	var keys []string
	seen := make(map[string]bool)
	for _, sp := range spans {
		key := sp.key()
		if key == "" || resource.IsIgnorable(key) || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	found := make([]*resource.Resource, len(keys))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			if res, ok := resolve(ctx, r.resolver, r.logger, key, baseDir, nil); ok {
				found[i] = &res
			}
			return nil
		})
	}
	_ = g.Wait()

	resolved := make(map[string]resource.Resource, len(keys))
	for i, key := range keys {
		if found[i] != nil {
			resolved[key] = *found[i]
		}
	}
	return resolved
}

// replacement returns the new text for one url() span.
func (r *StylesheetRewriter) replacement(sp urlSpan, resolved map[string]resource.Resource) string {
	key := sp.key()

	res, ok := resolved[key]
	if !ok && key != "" && !resource.IsIgnorable(key) {
		// An absolute URL may be stored under its canonical spelling.
		if u, err := url.Parse(key); err == nil && u.IsAbs() {
			res, ok = r.resolver.Peek(u.String())
		}
	}
	if ok {
		if inline, inlined := r.encoder.Encode(res); inlined {
			return "url('" + inline + "')"
		}
	}
	return "url('" + requote(sp) + "')"
}

// requote returns the span argument ready to sit between single quotes.
func requote(sp urlSpan) string {
	arg := strings.TrimSpace(sp.arg)
	if sp.quote == '\'' {
		return arg
	}
	var sb strings.Builder
	for i := 0; i < len(arg); i++ {
		switch c := arg[i]; c {
		case '\\':
			sb.WriteByte(c)
			if i+1 < len(arg) {
				i++
				sb.WriteByte(arg[i])
			}
		case '\'':
			sb.WriteString(`\'`)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// data URL masking
// ---------------------------------------------------------------------------

// dataURLMask names the placeholders standing in for url(data:...) while
// the minifier runs. The placeholder is a plain unquoted url() the minifier
// copies as it is.
const dataURLMask = "htmlinline-data-url-"

// maskDataURLs replaces each url(data:...) function with a numbered
// placeholder and returns the originals in placeholder order.
func maskDataURLs(css string) (string, []string) {
	var sb strings.Builder
	var originals []string
	last := 0
	for _, sp := range scanURLs(css) {
		if !strings.HasPrefix(strings.ToLower(sp.key()), "data:") {
			continue
		}
		sb.WriteString(css[last:sp.start])
		sb.WriteString(maskFor(len(originals)))
		originals = append(originals, css[sp.start:sp.end])
		last = sp.end
	}
	if len(originals) == 0 {
		return css, nil
	}
	sb.WriteString(css[last:])
	return sb.String(), originals
}

// unmaskDataURLs puts the functions hidden by maskDataURLs back.
// Placeholders end with ')', so url(...-1) never matches inside url(...-10).
func unmaskDataURLs(css string, originals []string) string {
	for i, orig := range originals {
		css = strings.Replace(css, maskFor(i), orig, 1)
	}
	return css
}

func maskFor(i int) string {
	return "url(" + dataURLMask + strconv.Itoa(i) + ")"
}

// ---------------------------------------------------------------------------
// url() scanning
// ---------------------------------------------------------------------------

// urlSpan is one url(...) occurrence: text[start:end] is the whole function,
// arg its argument without quotes, quote the quote character or 0.
type urlSpan struct {
	start, end int
	arg        string
	quote      byte
}

// key is the cache key of the argument: CSS escapes decoded, then
// normalized.
func (sp urlSpan) key() string {
	return resource.Normalize(unescapeCSS(sp.arg))
}

// scanURLs finds url(...) functions in css. Quoted arguments end at the
// matching unescaped quote, so parentheses and commas inside them are part
// of the argument. Unquoted arguments end at the first ')'. Comments and
// string literals outside url() are skipped. An unterminated url( is ignored.
func scanURLs(css string) []urlSpan {
	var spans []urlSpan
	for i := 0; i < len(css); {
		c := css[i]
		switch {
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				return spans
			}
			i += end + 4
		case c == '"' || c == '\'':
			i = stringEnd(css, i)
		case (c == 'u' || c == 'U') && hasURLPrefix(css, i):
			sp, ok := scanURL(css, i)
			if !ok {
				i += len("url(")
				continue
			}
			spans = append(spans, sp)
			i = sp.end
		default:
			i++
		}
	}
	return spans
}

// hasURLPrefix reports whether css[i:] starts a url( function that is not
// the tail of a longer identifier.
func hasURLPrefix(css string, i int) bool {
	if len(css)-i < 4 || !strings.EqualFold(css[i:i+4], "url(") {
		return false
	}
	return i == 0 || !isIdentChar(css[i-1])
}

func scanURL(css string, start int) (urlSpan, bool) {
	i := skipSpaces(css, start+len("url("))
	if i >= len(css) {
		return urlSpan{}, false
	}

	if q := css[i]; q == '"' || q == '\'' {
		end := stringEnd(css, i)
		if end > len(css) || css[end-1] != q || end-1 == i {
			return urlSpan{}, false
		}
		j := skipSpaces(css, end)
		if j >= len(css) || css[j] != ')' {
			return urlSpan{}, false
		}
		return urlSpan{start: start, end: j + 1, arg: css[i+1 : end-1], quote: q}, true
	}

	end := strings.IndexByte(css[i:], ')')
	if end < 0 {
		return urlSpan{}, false
	}
	return urlSpan{start: start, end: i + end + 1, arg: strings.TrimSpace(css[i : i+end])}, true
}

// stringEnd returns the index just past the string literal starting at i.
// An unterminated string runs to the end of s.
func stringEnd(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

func skipSpaces(s string, i int) int {
	for i < len(s) && strings.IndexByte(" \t\n\r\f", s[i]) >= 0 {
		i++
	}
	return i
}

func isIdentChar(c byte) bool {
	return c == '-' || c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// unescapeCSS decodes CSS escapes: a backslash followed by one to six hex
// digits (and one optional whitespace) is that code point, a backslash
// before a newline is a line continuation, and a backslash before any other
// character is that character.
func unescapeCSS(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break // trailing backslash
		}

		j := i + 1
		for j < len(s) && j-i <= 6 && isHexDigit(s[j]) {
			j++
		}
		if j > i+1 {
			cp, _ := strconv.ParseUint(s[i+1:j], 16, 32)
			r := rune(cp)
			if r == 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
				r = utf8.RuneError
			}
			sb.WriteRune(r)
			if j < len(s) && isCSSSpace(s[j]) {
				if s[j] == '\r' && j+1 < len(s) && s[j+1] == '\n' {
					j++
				}
				j++
			}
			i = j - 1
			continue
		}

		i++
		switch s[i] {
		case '\n', '\f':
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isCSSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
