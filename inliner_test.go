package htmlinline

// Notes:
// - Documents live in afero.MemMapFs; remote references use httptest.
// - Most tests disable the CSS formatters so stylesheet output can be compared
//   exactly. The default collaborators are exercised in internal/format, by
//   the "default formatters" case and by the DefaultFormatters tests below.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
)

var siteDir = filepath.FromSlash("/site")

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func sitePath(p string) string {
	return filepath.Join(siteDir, filepath.FromSlash(p))
}

// newSite writes files (site-relative path -> content) into a memory fs.
func newSite(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, content := range files {
		if err := afero.WriteFile(fs, sitePath(p), []byte(content), 0o644); err != nil {
			t.Fatalf("setup %s: %v", p, err)
		}
	}
	return fs
}

func newTestInliner(t *testing.T, fs afero.Fs, opts ...Option) *Inliner {
	t.Helper()

	base := []Option{WithFs(fs), WithCSSFormatters(nil, nil), WithConcurrency(2)}
	in, err := NewInliner(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewInliner: %v", err)
	}
	return in
}

// ---------------------------------------------------------------------------
// TestNewInliner - Construction
// ---------------------------------------------------------------------------

func TestNewInliner(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		in, err := NewInliner()
		if err != nil {
			t.Fatalf("NewInliner: %v", err)
		}
		if in.options != DefaultOptions() {
			t.Errorf("options = %+v, want %+v", in.options, DefaultOptions())
		}
		if in.CachedResources() != 0 {
			t.Errorf("CachedResources = %d, want 0", in.CachedResources())
		}
	})

	t.Run("negative cache size", func(t *testing.T) {
		t.Parallel()

		_, err := NewInliner(WithCacheSize(-1))
		if !errors.Is(err, ErrInvalidCacheSize) {
			t.Errorf("error = %v, want ErrInvalidCacheSize", err)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	got := DefaultOptions()
	if !got.Images || !got.Styles || got.Scripts {
		t.Errorf("DefaultOptions() = %+v, want images and styles only", got)
	}
}

// ---------------------------------------------------------------------------
// TestInliner_TransformHTML - Document transformation
// ---------------------------------------------------------------------------

func TestInliner_TransformHTML(t *testing.T) {
	t.Parallel()

	fs := newSite(t, map[string]string{
		"img/a.png": string(pngBytes),
		"css/b.css": `p{background:url(img/a.png)}`,
		"js/app.js": "run()",
	})

	tests := []struct {
		name     string
		opts     Options
		html     string
		contains []string
	}{
		{
			name:     "image inlined",
			opts:     DefaultOptions(),
			html:     `<img src="img/a.png">`,
			contains: []string{`<img src="` + pngDataURL() + `"/>`},
		},
		{
			name:     "stylesheet references resolve from the base directory",
			opts:     DefaultOptions(),
			html:     `<link rel="stylesheet" href="css/b.css">`,
			contains: []string{`<style type="text/css">p{background:url('` + pngDataURL() + `')}</style>`},
		},
		{
			name:     "scripts off by default",
			opts:     DefaultOptions(),
			html:     `<script src="js/app.js"></script>`,
			contains: []string{`<script src="js/app.js"></script>`},
		},
		{
			name:     "scripts on",
			opts:     Options{Scripts: true},
			html:     `<script src="js/app.js"></script>`,
			contains: []string{`<script>run()</script>`},
		},
		{
			name:     "images off",
			opts:     Options{Styles: true},
			html:     `<img src="img/a.png">`,
			contains: []string{`<img src="img/a.png"/>`},
		},
		{
			name:     "missing reference kept",
			opts:     DefaultOptions(),
			html:     `<img src="img/none.png">`,
			contains: []string{`<img src="img/none.png"/>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := newTestInliner(t, fs, WithOptions(tt.opts))
			got, err := in.TransformHTML(context.Background(), tt.html, siteDir)
			if err != nil {
				t.Fatalf("TransformHTML: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q\ngot: %s", want, got)
				}
			}
		})
	}
}

func TestInliner_TransformHTML_HTMLFormatter(t *testing.T) {
	t.Parallel()

	fs := newSite(t, nil)
	in := newTestInliner(t, fs, WithHTMLFormatter(func(s string) (string, error) {
		return "<!-- formatted -->" + s, nil
	}))

	got, err := in.TransformHTML(context.Background(), `<p>x</p>`, siteDir)
	if err != nil {
		t.Fatalf("TransformHTML: %v", err)
	}
	if got != "<!-- formatted --><p>x</p>" {
		t.Errorf("TransformHTML = %q", got)
	}
}

func TestInliner_TransformHTML_CanceledContext(t *testing.T) {
	t.Parallel()

	in := newTestInliner(t, newSite(t, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := in.TransformHTML(ctx, `<p>x</p>`, siteDir); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// TestInliner_TransformCSS - Stylesheet transformation
// ---------------------------------------------------------------------------

func TestInliner_TransformCSS(t *testing.T) {
	t.Parallel()

	fs := newSite(t, map[string]string{"img/x.png": string(pngBytes)})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		in := newTestInliner(t, fs)
		got, err := in.TransformCSS(context.Background(), `a{background:url("img/x.png")}`, siteDir)
		if err != nil {
			t.Fatalf("TransformCSS: %v", err)
		}
		want := `a{background:url('` + pngDataURL() + `')}`
		if got != want {
			t.Errorf("TransformCSS =\n%q\nwant\n%q", got, want)
		}
	})

	t.Run("not gated by styles option", func(t *testing.T) {
		t.Parallel()

		in := newTestInliner(t, fs, WithOptions(Options{}))
		got, err := in.TransformCSS(context.Background(), `a{b:url(img/x.png)}`, siteDir)
		if err != nil {
			t.Fatalf("TransformCSS: %v", err)
		}
		if !strings.Contains(got, pngDataURL()) {
			t.Errorf("TransformCSS = %q, want inlined url", got)
		}
	})

	t.Run("default formatters", func(t *testing.T) {
		t.Parallel()

		in, err := NewInliner(WithFs(fs))
		if err != nil {
			t.Fatalf("NewInliner: %v", err)
		}
		got, err := in.TransformCSS(context.Background(), "a {\n  background: url( img/x.png );\n}\n", siteDir)
		if err != nil {
			t.Fatalf("TransformCSS: %v", err)
		}
		if !strings.Contains(got, "url('"+pngDataURL()+"')") {
			t.Errorf("TransformCSS = %q, want inlined url", got)
		}
	})

	t.Run("size ceiling", func(t *testing.T) {
		t.Parallel()

		in := newTestInliner(t, fs, WithMaxInlineSize(8))
		got, err := in.TransformCSS(context.Background(), `a{b:url(img/x.png)}`, siteDir)
		if err != nil {
			t.Fatalf("TransformCSS: %v", err)
		}
		if got != `a{b:url('img/x.png')}` {
			t.Errorf("TransformCSS = %q, want original reference", got)
		}
	})
}

// ---------------------------------------------------------------------------
// TestInliner_TransformFile - In-place file transformation
// ---------------------------------------------------------------------------

func TestInliner_TransformFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		content     string
		wantErr     error
		wantChanged bool
		wantFile    string
	}{
		{
			name:        "html rewritten",
			path:        "page.html",
			content:     `<img src="img/a.png">`,
			wantChanged: true,
			wantFile:    `<img src="` + pngDataURL() + `"/>`,
		},
		{
			name:        "htm extension",
			path:        "page.HTM",
			content:     `<img src="img/a.png">`,
			wantChanged: true,
			wantFile:    `<img src="` + pngDataURL() + `"/>`,
		},
		{
			name:        "css rewritten",
			path:        "css/site.css",
			content:     `a{b:url(img/a.png)}`,
			wantChanged: true,
			wantFile:    `a{b:url('` + pngDataURL() + `')}`,
		},
		{
			name:     "unchanged file kept",
			path:     "plain.html",
			content:  `<p>nothing to do</p>`,
			wantFile: `<p>nothing to do</p>`,
		},
		{
			name:    "unsupported extension",
			path:    "notes.txt",
			content: "x",
			wantErr: ErrUnsupportedDocument,
		},
		{
			name:    "missing document",
			path:    "gone.html",
			wantErr: ErrDocumentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			files := map[string]string{"img/a.png": string(pngBytes)}
			if tt.content != "" {
				files[tt.path] = tt.content
			}
			fs := newSite(t, files)
			in := newTestInliner(t, fs)

			res, err := in.TransformFile(context.Background(), siteDir, sitePath(tt.path))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TransformFile: %v", err)
			}

			if res.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", res.Changed, tt.wantChanged)
			}
			if res.InputSize != len(tt.content) {
				t.Errorf("InputSize = %d, want %d", res.InputSize, len(tt.content))
			}
			if res.OutputSize != len(tt.wantFile) {
				t.Errorf("OutputSize = %d, want %d", res.OutputSize, len(tt.wantFile))
			}

			data, err := afero.ReadFile(fs, sitePath(tt.path))
			if err != nil {
				t.Fatalf("reading result: %v", err)
			}
			if string(data) != tt.wantFile {
				t.Errorf("file = %q, want %q", data, tt.wantFile)
			}
		})
	}
}

func TestInliner_TransformFile_Idempotent(t *testing.T) {
	t.Parallel()

	fs := newSite(t, map[string]string{
		"img/a.png": string(pngBytes),
		"css/a.css": `body{background:url(img/a.png)}`,
		"index.html": `<!DOCTYPE html><html><head><link rel="stylesheet" href="css/a.css"></head>` +
			`<body><img src="img/a.png"><img src="img/none.png"></body></html>`,
	})
	in := newTestInliner(t, fs)

	first, err := in.TransformFile(context.Background(), siteDir, sitePath("index.html"))
	if err != nil {
		t.Fatalf("first TransformFile: %v", err)
	}
	if !first.Changed {
		t.Fatal("first pass changed nothing")
	}

	second, err := in.TransformFile(context.Background(), siteDir, sitePath("index.html"))
	if err != nil {
		t.Fatalf("second TransformFile: %v", err)
	}
	if second.Changed || second.OutputSize != first.OutputSize {
		t.Errorf("second pass = %+v, want no change from %d bytes", second, first.OutputSize)
	}
}

func TestInliner_TransformHTML_IdempotentDefaultFormatters(t *testing.T) {
	t.Parallel()

	fs := newSite(t, map[string]string{
		"img/a.png": string(pngBytes),
		"css/a.css": "body {\n  background: url(img/a.png) no-repeat;\n}\n",
	})
	doc := `<!DOCTYPE html><html><head>` +
		`<link rel="stylesheet" href="css/a.css">` +
		`<style>h1 { color: red }</style>` +
		`<style>.logo { background: url("img/a.png") }</style>` +
		`<style>.icon { background: url(data:image/svg+xml,%3Csvg%3E%3C/svg%3E) }</style>` +
		`</head><body><h1>x</h1><img src="img/a.png"></body></html>`

	first, err := NewInliner(WithFs(fs))
	if err != nil {
		t.Fatalf("NewInliner: %v", err)
	}
	once, err := first.TransformHTML(context.Background(), doc, siteDir)
	if err != nil {
		t.Fatalf("first TransformHTML: %v", err)
	}
	if strings.Contains(once, "<link") || !strings.Contains(once, pngDataURL()) {
		t.Fatalf("first pass did not inline: %q", once)
	}
	if !strings.Contains(once, "%3Csvg%3E%3C/svg%3E") || strings.Contains(once, "%25") {
		t.Errorf("first pass re-encoded the svg data URL: %q", once)
	}

	second, err := NewInliner(WithFs(fs))
	if err != nil {
		t.Fatalf("NewInliner: %v", err)
	}
	twice, err := second.TransformHTML(context.Background(), once, siteDir)
	if err != nil {
		t.Fatalf("second TransformHTML: %v", err)
	}
	if once != twice {
		t.Errorf("second pass changed output:\n%q\n%q", once, twice)
	}
}

func TestInliner_TransformCSS_DataURLsDefaultFormatters(t *testing.T) {
	t.Parallel()

	fs := newSite(t, nil)
	css := "a { background: url(data:image/png;base64,iVBORw0KGgo=) }\n" +
		"b { background: url('data:image/svg+xml,%3Csvg%20width=%221%22%3E%3C/svg%3E') }\n" +
		"c { background: url(data:image/png,%89PNG) }\n"

	in, err := NewInliner(WithFs(fs))
	if err != nil {
		t.Fatalf("NewInliner: %v", err)
	}
	once, err := in.TransformCSS(context.Background(), css, siteDir)
	if err != nil {
		t.Fatalf("TransformCSS: %v", err)
	}
	for _, want := range []string{
		"url('data:image/png;base64,iVBORw0KGgo=')",
		"url('data:image/svg+xml,%3Csvg%20width=%221%22%3E%3C/svg%3E')",
		"url('data:image/png,%89PNG')",
	} {
		if !strings.Contains(once, want) {
			t.Errorf("TransformCSS = %q, want it to contain %q", once, want)
		}
	}
	if in.CachedResources() != 0 {
		t.Errorf("CachedResources = %d, want 0 for data URLs", in.CachedResources())
	}

	fresh, err := NewInliner(WithFs(fs))
	if err != nil {
		t.Fatalf("NewInliner: %v", err)
	}
	twice, err := fresh.TransformCSS(context.Background(), once, siteDir)
	if err != nil {
		t.Fatalf("second TransformCSS: %v", err)
	}
	if once != twice {
		t.Errorf("second pass changed output:\n%q\n%q", once, twice)
	}
}

func TestInliner_PreviewFile(t *testing.T) {
	t.Parallel()

	content := `<img src="img/a.png">`
	fs := newSite(t, map[string]string{"img/a.png": string(pngBytes), "page.html": content})
	in := newTestInliner(t, fs)

	res, err := in.PreviewFile(context.Background(), siteDir, sitePath("page.html"))
	if err != nil {
		t.Fatalf("PreviewFile: %v", err)
	}
	if !res.Changed || res.Growth() <= 0 {
		t.Errorf("PreviewFile = %+v, want a change with growth", res)
	}

	data, _ := afero.ReadFile(fs, sitePath("page.html"))
	if string(data) != content {
		t.Errorf("file was written: %q", data)
	}
}

// ---------------------------------------------------------------------------
// TestInliner_SharedCache - One fetch per reference across documents
// ---------------------------------------------------------------------------

func TestInliner_SharedCache(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	fs := newSite(t, nil)
	in := newTestInliner(t, fs, WithHTTPClient(srv.Client()))

	html := `<img src="` + srv.URL + `/logo.png"><img src=' ` + srv.URL + `/logo.png '>`
	for i := 0; i < 3; i++ {
		got, err := in.TransformHTML(context.Background(), html, siteDir)
		if err != nil {
			t.Fatalf("TransformHTML: %v", err)
		}
		if strings.Count(got, pngDataURL()) != 2 {
			t.Errorf("pass %d: want both images inlined, got %s", i, got)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if got := in.CachedResources(); got != 1 {
		t.Errorf("CachedResources = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// TestInliner_Metrics - Document counters
// ---------------------------------------------------------------------------

func TestInliner_Metrics(t *testing.T) {
	t.Parallel()

	fs := newSite(t, map[string]string{
		"img/a.png": string(pngBytes),
		"a.html":    `<img src="img/a.png">`,
		"b.html":    `<p>x</p>`,
	})
	reg := prometheus.NewRegistry()
	in := newTestInliner(t, fs, WithMetrics(reg))

	for _, p := range []string{"a.html", "b.html", "c.html"} {
		_, _ = in.TransformFile(context.Background(), siteDir, sitePath(p))
	}

	for outcome, want := range map[string]float64{outcomeChanged: 1, outcomeUnchanged: 1, outcomeFailed: 1} {
		if got := testutil.ToFloat64(in.metrics.documents.WithLabelValues(outcome)); got != want {
			t.Errorf("documents{%s} = %v, want %v", outcome, got, want)
		}
	}

	if n, err := testutil.GatherAndCount(reg, "htmlinline_cache_misses_total"); err != nil || n != 1 {
		t.Errorf("cache metrics not registered: n=%d err=%v", n, err)
	}
}

// ---------------------------------------------------------------------------
// TestIsDocument / TestResolveWorkers
// ---------------------------------------------------------------------------

func TestIsDocument(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"index.html":    true,
		"INDEX.HTM":     true,
		"css/site.css":  true,
		"app.js":        false,
		"readme":        false,
		"archive.html~": false,
	}
	for path, want := range tests {
		if got := IsDocument(path); got != want {
			t.Errorf("IsDocument(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestResolveWorkers(t *testing.T) {
	t.Parallel()

	if got := ResolveWorkers(3); got != 3 {
		t.Errorf("ResolveWorkers(3) = %d, want 3", got)
	}
	got := ResolveWorkers(0)
	if got < MinWorkers || got > MaxWorkers {
		t.Errorf("ResolveWorkers(0) = %d, want within [%d, %d]", got, MinWorkers, MaxWorkers)
	}
}
