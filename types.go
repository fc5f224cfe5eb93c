package htmlinline

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alnah/go-htmlinline/internal/encode"
	"github.com/alnah/go-htmlinline/internal/format"
	"github.com/alnah/go-htmlinline/internal/resource"
)

// Options selects which kinds of assets are embedded.
type Options struct {
	Images  bool // <img src> and <picture><source srcset>
	Styles  bool // <link rel="stylesheet">, url(...) in CSS, <style> merging
	Scripts bool // <script src>
}

// DefaultOptions inlines images and stylesheets and leaves scripts alone.
func DefaultOptions() Options {
	return Options{Images: true, Styles: true}
}

// FileResult describes one TransformFile call.
type FileResult struct {
	Path       string
	InputSize  int
	OutputSize int
	Changed    bool // false when the output equals the input; nothing is written
}

// Growth is the size difference in bytes between output and input.
func (r FileResult) Growth() int {
	return r.OutputSize - r.InputSize
}

// Formatter is a text -> text collaborator. A failing Formatter never
// aborts a transformation: its input is used instead.
type Formatter func(string) (string, error)

// Built-in collaborators.
var (
	MinifyCSS  Formatter = format.MinifyCSS
	PrettyCSS  Formatter = format.PrettyCSS
	MinifyJS   Formatter = format.MinifyJS
	FormatHTML Formatter = format.FormatHTML
)

// Option configures an Inliner.
type Option func(*inlinerConfig)

// inlinerConfig holds internal configuration for Inliner.
type inlinerConfig struct {
	fs            afero.Fs
	client        *http.Client
	logger        *zap.Logger
	registerer    prometheus.Registerer
	cacheSize     int
	maxInlineSize int
	maxFetchBytes int64
	fetchTimeout  time.Duration
	preferLocal   bool
	options       Options
	minifyCSS     Formatter
	prettyCSS     Formatter
	script        Formatter
	html          Formatter
	concurrency   int
}

func defaultConfig() inlinerConfig {
	return inlinerConfig{
		cacheSize:     resource.DefaultCacheSize,
		maxInlineSize: encode.DefaultMaxSize,
		maxFetchBytes: resource.DefaultMaxBytes,
		fetchTimeout:  resource.DefaultTimeout,
		options:       DefaultOptions(),
		minifyCSS:     MinifyCSS,
		prettyCSS:     PrettyCSS,
	}
}

// WithFs sets the filesystem used for local references and document I/O.
// Default: the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *inlinerConfig) {
		c.fs = fs
	}
}

// WithHTTPClient sets the client used for remote references.
func WithHTTPClient(client *http.Client) Option {
	return func(c *inlinerConfig) {
		c.client = client
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *inlinerConfig) {
		c.logger = l
	}
}

// WithMetrics registers cache, fetch and document counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *inlinerConfig) {
		c.registerer = reg
	}
}

// WithCacheSize sets how many resources are kept before eviction.
// Default: 1000.
func WithCacheSize(n int) Option {
	return func(c *inlinerConfig) {
		c.cacheSize = n
	}
}

// WithMaxInlineSize sets the longest inline form, in characters, that
// replaces a reference. Longer encodings keep the original reference.
// A negative value disables the limit. Default: 10000.
func WithMaxInlineSize(n int) Option {
	return func(c *inlinerConfig) {
		c.maxInlineSize = n
	}
}

// WithFetchLimits bounds remote fetches. Zero values keep the defaults
// (16MB, 30s).
func WithFetchLimits(maxBytes int64, timeout time.Duration) Option {
	return func(c *inlinerConfig) {
		if maxBytes > 0 {
			c.maxFetchBytes = maxBytes
		}
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

// WithPreferLocal reads http(s) references from the base directory when a
// file exists at the URL path, as for a mirrored site.
func WithPreferLocal(enabled bool) Option {
	return func(c *inlinerConfig) {
		c.preferLocal = enabled
	}
}

// WithOptions sets which assets are inlined. Default: DefaultOptions().
func WithOptions(o Options) Option {
	return func(c *inlinerConfig) {
		c.options = o
	}
}

// WithCSSFormatters sets the minifier run before url() rewriting and the
// pretty-printer run after it. nil means identity.
func WithCSSFormatters(minify, pretty Formatter) Option {
	return func(c *inlinerConfig) {
		c.minifyCSS = minify
		c.prettyCSS = pretty
	}
}

// WithScriptFormatter sets the formatter applied to fetched scripts.
func WithScriptFormatter(f Formatter) Option {
	return func(c *inlinerConfig) {
		c.script = f
	}
}

// WithHTMLFormatter sets the formatter applied to the final HTML.
func WithHTMLFormatter(f Formatter) Option {
	return func(c *inlinerConfig) {
		c.html = f
	}
}

// WithConcurrency bounds concurrent resolutions per document.
// Default: GOMAXPROCS*4.
func WithConcurrency(n int) Option {
	return func(c *inlinerConfig) {
		c.concurrency = n
	}
}
