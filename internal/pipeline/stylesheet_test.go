package pipeline

// Notes:
// - Rewriter tests use identity collaborators so expected CSS is exact.
//   The real minifier and pretty-printer are covered in internal/format.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alnah/go-htmlinline/internal/encode"
	"github.com/alnah/go-htmlinline/internal/format"
	"github.com/alnah/go-htmlinline/internal/resource"
)

// ---------------------------------------------------------------------------
// TestScanURLs - url() tokenizer
// ---------------------------------------------------------------------------

func TestScanURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		css      string
		wantArgs []string
	}{
		{name: "unquoted", css: "a{b:url(x.png)}", wantArgs: []string{"x.png"}},
		{name: "double quoted", css: `a{b:url("x.png")}`, wantArgs: []string{"x.png"}},
		{name: "single quoted", css: `a{b:url('x.png')}`, wantArgs: []string{"x.png"}},
		{name: "inner spaces", css: `a{b:url(  "x.png"  )}`, wantArgs: []string{"x.png"}},
		{name: "uppercase function", css: "a{b:URL(x.png)}", wantArgs: []string{"x.png"}},
		{name: "multiple", css: "a{b:url(x.png),url(y.png)}", wantArgs: []string{"x.png", "y.png"}},
		{name: "parentheses inside quotes", css: `a{b:url("x(1).png")}`, wantArgs: []string{"x(1).png"}},
		{name: "data url with comma", css: `a{b:url("data:image/png;base64,AA==")}`, wantArgs: []string{"data:image/png;base64,AA=="}},
		{name: "escaped quote", css: `a{b:url('it\'s.png')}`, wantArgs: []string{`it\'s.png`}},
		{name: "inside string ignored", css: `a{content:"url(x.png)"}`, wantArgs: nil},
		{name: "inside comment ignored", css: `/* url(x.png) */a{}`, wantArgs: nil},
		{name: "identifier suffix ignored", css: "a{b:myurl(x.png)}", wantArgs: nil},
		{name: "unterminated", css: "a{b:url(x.png", wantArgs: nil},
		{name: "unterminated quote", css: `a{b:url("x.png)}`, wantArgs: nil},
		{name: "empty", css: "a{b:url()}", wantArgs: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spans := scanURLs(tt.css)
			if len(spans) != len(tt.wantArgs) {
				t.Fatalf("scanURLs(%q) found %d spans, want %d", tt.css, len(spans), len(tt.wantArgs))
			}
			for i, sp := range spans {
				if sp.arg != tt.wantArgs[i] {
					t.Errorf("span %d arg = %q, want %q", i, sp.arg, tt.wantArgs[i])
				}
				if got := tt.css[sp.start:sp.end]; !strings.HasPrefix(strings.ToLower(got), "url(") || !strings.HasSuffix(got, ")") {
					t.Errorf("span %d text = %q, want a whole url() function", i, got)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestStylesheetRewriter_Rewrite - Substitution rules
// ---------------------------------------------------------------------------

func TestStylesheetRewriter_Rewrite(t *testing.T) {
	t.Parallel()

	b64 := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name string
		css  string
		want string
	}{
		{
			name: "round trip to base64 data url",
			css:  `a{background:url("img/x.png")}`,
			want: `a{background:url('data:image/png;base64,` + b64 + `')}`,
		},
		{
			name: "unquoted and repeated",
			css:  `a{b:url(img/x.png)}c{d:url(img/x.png)}`,
			want: `a{b:url('data:image/png;base64,` + b64 + `')}c{d:url('data:image/png;base64,` + b64 + `')}`,
		},
		{
			name: "svg percent encoded",
			css:  `i{b:url(icon.svg)}`,
			want: `i{b:url('data:image/svg+xml,%3Csvg%2F%3E')}`,
		},
		{
			name: "unresolved rewrapped in single quotes",
			css:  `a{b:url(missing.png)}`,
			want: `a{b:url('missing.png')}`,
		},
		{
			name: "unresolved with apostrophe escaped",
			css:  `a{b:url("it's.png")}`,
			want: `a{b:url('it\'s.png')}`,
		},
		{
			name: "anchor is not fetched",
			css:  `a{filter:url(#blur)}`,
			want: `a{filter:url('#blur')}`,
		},
		{
			name: "existing data url kept",
			css:  `a{b:url(data:image/gif;base64,R0lG)}`,
			want: `a{b:url('data:image/gif;base64,R0lG')}`,
		},
		{
			name: "text outside url untouched",
			css:  `a{content:"url(img/x.png)";color:red}`,
			want: `a{content:"url(img/x.png)";color:red}`,
		},
		{
			name: "no urls",
			css:  `a{color:red}`,
			want: `a{color:red}`,
		},
	}

	f := newFixture(t, map[string]string{
		"img/x.png": string(pngBytes),
		"icon.svg":  "<svg/>",
	})
	r := NewStylesheetRewriter(f.identityConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := r.Rewrite(context.Background(), tt.css, testBase)
			if got != tt.want {
				t.Errorf("Rewrite(%q) =\n%q\nwant\n%q", tt.css, got, tt.want)
			}
		})
	}
}

func TestStylesheetRewriter_Rewrite_FetchesEachReferenceOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"img/x.png": string(pngBytes)})
	r := NewStylesheetRewriter(f.identityConfig())

	css := `a{b:url(img/x.png)}b{c:url("img/x.png")}c{d:url( 'img/x.png' )}`
	_ = r.Rewrite(context.Background(), css, testBase)
	_ = r.Rewrite(context.Background(), css, testBase)

	if got := f.fetcher.count("img/x.png"); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestStylesheetRewriter_Rewrite_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"img/x.png": string(pngBytes)})
	r := NewStylesheetRewriter(f.identityConfig())

	once := r.Rewrite(context.Background(), `a{b:url("img/x.png")}c{d:url(gone.png)}`, testBase)
	twice := r.Rewrite(context.Background(), once, testBase)
	if once != twice {
		t.Errorf("second pass changed output:\n%q\n%q", once, twice)
	}
}

func TestStylesheetRewriter_Rewrite_SizeCeiling(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"img/x.png": string(pngBytes)})
	cfg := f.identityConfig()
	cfg.Encoder = encode.Encoder{MaxSize: 10}
	r := NewStylesheetRewriter(cfg)

	got := r.Rewrite(context.Background(), `a{b:url(img/x.png)}`, testBase)
	if got != `a{b:url('img/x.png')}` {
		t.Errorf("Rewrite = %q, want original reference kept", got)
	}
}

// peekResolver fails every resolution but serves Peek from a fixed entry.
type peekResolver struct {
	key string
	res resource.Resource
}

func (p peekResolver) Resolve(context.Context, string, string, resource.Transform) (resource.Result, error) {
	return resource.Result{}, resource.ErrFetch
}

func (p peekResolver) Peek(ref string) (resource.Resource, bool) {
	if ref == p.key {
		return p.res, true
	}
	return resource.Resource{}, false
}

func TestStylesheetRewriter_Rewrite_AbsoluteURLFromCache(t *testing.T) {
	t.Parallel()

	r := NewStylesheetRewriter(Config{
		Resolver: peekResolver{
			key: "http://example.com/a.txt",
			res: resource.Resource{Reference: "http://example.com/a.txt", Payload: []byte("hi"), ContentType: "text/plain"},
		},
	})

	got := r.Rewrite(context.Background(), `a{b:url(HTTP://example.com/a.txt)}`, testBase)
	want := `a{b:url('data:text/plain;charset=utf-8,hi')}`
	if got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
}

func TestStylesheetRewriter_Rewrite_CollaboratorFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"img/x.png": string(pngBytes)})
	failing := func(string) (string, error) { return "", errors.New("formatter crashed") }

	cfg := f.identityConfig()
	cfg.Collaborators = Collaborators{MinifyCSS: failing, PrettyCSS: failing}
	r := NewStylesheetRewriter(cfg)

	got := r.Rewrite(context.Background(), `a{b:url(img/x.png)}`, testBase)
	if !strings.HasPrefix(got, `a{b:url('data:image/png;base64,`) {
		t.Errorf("Rewrite = %q, want rewrite over the unformatted text", got)
	}
}

func TestStylesheetRewriter_Rewrite_DefaultCollaborators(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"img/x.png": string(pngBytes)})
	cfg := f.identityConfig()
	cfg.Collaborators = DefaultCollaborators()
	r := NewStylesheetRewriter(cfg)

	got := r.Rewrite(context.Background(), "a {\n  background : url( \"img/x.png\" ) ;\n}\n", testBase)
	if !strings.Contains(got, "url('data:image/png;base64,") {
		t.Errorf("Rewrite = %q, want inlined url", got)
	}
	if want, _ := format.PrettyCSS(got); got != want {
		t.Errorf("Rewrite output is not pretty-printed: %q", got)
	}
}

func TestStylesheetRewriter_Rewrite_DefaultCollaboratorsKeepDataURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		css  string
		want string
	}{
		{
			name: "base64 png",
			css:  "c{background:url(data:image/png;base64,iVBORw0KGgo=)}",
			want: "url('data:image/png;base64,iVBORw0KGgo=')",
		},
		{
			name: "percent encoded svg",
			css:  `c{background:url("data:image/svg+xml,%3Csvg%3E%3C/svg%3E")}`,
			want: "url('data:image/svg+xml,%3Csvg%3E%3C/svg%3E')",
		},
		{
			name: "percent encoded png bytes",
			css:  "c{background:url(data:image/png,%89PNG%0D%0A)}",
			want: "url('data:image/png,%89PNG%0D%0A')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			cfg := f.identityConfig()
			cfg.Collaborators = DefaultCollaborators()
			r := NewStylesheetRewriter(cfg)

			once := r.Rewrite(context.Background(), tt.css, testBase)
			if !strings.Contains(once, tt.want) {
				t.Errorf("Rewrite(%q) = %q, want it to contain %q", tt.css, once, tt.want)
			}
			if strings.Contains(once, "%25") {
				t.Errorf("Rewrite(%q) = %q, percent signs were re-encoded", tt.css, once)
			}

			twice := r.Rewrite(context.Background(), once, testBase)
			if once != twice {
				t.Errorf("second pass changed output:\n%q\n%q", once, twice)
			}
			if got := f.fetcher.total(); got != 0 {
				t.Errorf("fetches = %d, want 0 for data URLs", got)
			}
		})
	}
}

func TestStylesheetRewriter_Rewrite_DefaultCollaboratorsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"img/x.png": string(pngBytes)})
	cfg := f.identityConfig()
	cfg.Collaborators = DefaultCollaborators()
	r := NewStylesheetRewriter(cfg)

	css := "a { background: url(img/x.png) }\n" +
		"b { background: url(data:image/svg+xml,%3Csvg%3E%3C/svg%3E) }\n" +
		"c { background: url(gone.png) }\n"
	once := r.Rewrite(context.Background(), css, testBase)
	twice := r.Rewrite(context.Background(), once, testBase)
	if once != twice {
		t.Errorf("second pass changed output:\n%q\n%q", once, twice)
	}
	if !strings.Contains(once, "url('data:image/png;base64,") {
		t.Errorf("Rewrite = %q, want inlined image", once)
	}
}

func TestStylesheetRewriter_Rewrite_EscapedArguments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{
		"img/x.png":    string(pngBytes),
		"img/it's.png": string(pngBytes),
	})
	r := NewStylesheetRewriter(f.identityConfig())

	css := `a{b:url('img/x.png')}b{c:url("img/\78 .png")}c{d:url('img/x\2e png')}d{e:url('img/it\'s.png')}`
	got := r.Rewrite(context.Background(), css, testBase)

	if n := strings.Count(got, "url('data:image/png;base64,"); n != 4 {
		t.Errorf("Rewrite = %q, inlined %d urls, want 4", got, n)
	}
	if n := f.fetcher.count("img/x.png"); n != 1 {
		t.Errorf("fetches of img/x.png = %d, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// TestMaskDataURLs - Hiding data URLs from the minifier
// ---------------------------------------------------------------------------

func TestMaskDataURLs(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "a%d{b:url(data:text/plain,%%2%d)}", i, i%10)
	}
	sb.WriteString(`z{b:url(img/x.png);c:url("DATA:text/plain,x")}`)
	css := sb.String()

	masked, originals := maskDataURLs(css)
	if len(originals) != 13 {
		t.Fatalf("masked %d functions, want 13", len(originals))
	}
	if strings.Contains(strings.ToLower(masked), "data:") {
		t.Errorf("masked text still holds a data URL: %q", masked)
	}
	if !strings.Contains(masked, "url(img/x.png)") {
		t.Errorf("masked text lost a plain url: %q", masked)
	}
	if got := unmaskDataURLs(masked, originals); got != css {
		t.Errorf("unmask =\n%q\nwant\n%q", got, css)
	}
}

func TestMaskDataURLs_NoDataURLs(t *testing.T) {
	t.Parallel()

	css := "a{b:url(x.png)}"
	masked, originals := maskDataURLs(css)
	if masked != css || originals != nil {
		t.Errorf("maskDataURLs(%q) = %q, %v, want input unchanged", css, masked, originals)
	}
}

// ---------------------------------------------------------------------------
// TestUnescapeCSS - CSS escape decoding
// ---------------------------------------------------------------------------

func TestUnescapeCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no escapes", in: "img/x.png", want: "img/x.png"},
		{name: "escaped single quote", in: `it\'s.png`, want: "it's.png"},
		{name: "escaped double quote", in: `say\"hi\".png`, want: `say"hi".png`},
		{name: "hex with trailing space", in: `\31 x`, want: "1x"},
		{name: "hex escape of a dot", in: `\2e png`, want: ".png"},
		{name: "six hex digits", in: `\00004Ax`, want: "Jx"},
		{name: "hex stops at non hex", in: `\41g`, want: "Ag"},
		{name: "line continuation", in: "a\\\nb", want: "ab"},
		{name: "crlf continuation", in: "a\\\r\nb", want: "ab"},
		{name: "escaped backslash", in: `a\\b`, want: `a\b`},
		{name: "null becomes replacement", in: `\0 x`, want: "\uFFFDx"},
		{name: "trailing backslash dropped", in: `a\`, want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := unescapeCSS(tt.in); got != tt.want {
				t.Errorf("unescapeCSS(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
