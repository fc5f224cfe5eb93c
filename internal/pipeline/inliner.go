package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-htmlinline/internal/encode"
	"github.com/alnah/go-htmlinline/internal/format"
	"github.com/alnah/go-htmlinline/internal/resource"
)

// ErrParseHTML indicates markup the HTML parser rejected.
var ErrParseHTML = errors.New("parsing HTML")

// Resolver turns references into resources. *resource.Cache implements it.
type Resolver interface {
	Resolve(ctx context.Context, ref, baseDir string, transform resource.Transform) (resource.Result, error)
	Peek(ref string) (resource.Resource, bool)
}

// Encoder turns a resource into its inline form. encode.Encoder implements it.
type Encoder interface {
	Encode(r resource.Resource) (string, bool)
}

// Compile-time interface checks.
var (
	_ Resolver = (*resource.Cache)(nil)
	_ Encoder  = encode.Encoder{}
)

// Collaborators are the text transformers the pipeline calls out to.
// A nil field is the identity.
type Collaborators struct {
	MinifyCSS format.Func
	PrettyCSS format.Func
	Script    format.Func
	HTML      format.Func
}

// DefaultCollaborators minifies then pretty-prints CSS and leaves scripts
// and the final HTML as they are.
func DefaultCollaborators() Collaborators {
	return Collaborators{
		MinifyCSS: format.MinifyCSS,
		PrettyCSS: format.PrettyCSS,
	}
}

// Options gates the document sub-passes.
type Options struct {
	Images  bool // img[src] and picture > source[srcset]
	Styles  bool // link[rel=stylesheet] and style merging
	Scripts bool // script[src]
}

// Config wires a DocumentInliner or StylesheetRewriter.
type Config struct {
	Resolver      Resolver
	Encoder       Encoder
	Collaborators Collaborators
	Logger        *zap.Logger
	Concurrency   int // resolutions in flight per document; 0 means GOMAXPROCS*4
}

func (c Config) withDefaults() Config {
	if c.Encoder == nil {
		c.Encoder = encode.Encoder{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.GOMAXPROCS(0) * 4
	}
	return c
}

// DocumentInliner embeds the assets referenced by an HTML document.
type DocumentInliner struct {
	resolver    Resolver
	encoder     Encoder
	styles      *StylesheetRewriter
	script      format.Func
	html        format.Func
	logger      *zap.Logger
	concurrency int
}

// NewDocumentInliner creates a DocumentInliner from cfg.
// cfg.Resolver must not be nil.
func NewDocumentInliner(cfg Config) *DocumentInliner {
	cfg = cfg.withDefaults()
	return &DocumentInliner{
		resolver:    cfg.Resolver,
		encoder:     cfg.Encoder,
		styles:      NewStylesheetRewriter(cfg),
		script:      cfg.Collaborators.Script,
		html:        cfg.Collaborators.HTML,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Stylesheets returns the rewriter used for CSS, for top-level .css files.
func (d *DocumentInliner) Stylesheets() *StylesheetRewriter {
	return d.styles
}

// patch is a pending DOM mutation. Resolution runs concurrently off the
// tree; patches are applied one at a time afterwards.
type patch func()

// task resolves the references of one element and returns its patch,
// nil when nothing changes. Tasks must not touch the DOM.
type task func(ctx context.Context) patch

// Inline returns content with the assets enabled in opts embedded.
// Relative references are resolved against baseDir. Individual resources
// that cannot be resolved are logged and left as they were.
func (d *DocumentInliner) Inline(ctx context.Context, content, baseDir string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, isFragment, err := parseHTML(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseHTML, err)
	}

	var tasks []task
	if opts.Images {
		tasks = append(tasks, d.imageTasks(doc, baseDir)...)
		tasks = append(tasks, d.srcsetTasks(doc, baseDir)...)
	}
	if opts.Styles {
		tasks = append(tasks, d.stylesheetTasks(doc, baseDir)...)
	}
	if opts.Scripts {
		tasks = append(tasks, d.scriptTasks(doc, baseDir)...)
	}

	for _, p := range d.run(ctx, tasks) {
		if p != nil {
			p()
		}
	}

	if opts.Styles {
		d.mergeStyles(ctx, doc, baseDir)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := renderHTML(doc, isFragment)
	if err != nil {
		return "", fmt.Errorf("rendering HTML: %w", err)
	}

	out, err = format.Apply(d.html, out)
	if err != nil {
		d.logger.Warn("html format failed", zap.Error(err))
	}
	if !isFragment {
		out = StripSourceMaps(out)
	}
	return out, nil
}

// run executes tasks with bounded concurrency and returns their patches in
// task order.
func (d *DocumentInliner) run(ctx context.Context, tasks []task) []patch {
	patches := make([]patch, len(tasks))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			patches[i] = t(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return patches
}

// resolve wraps Resolver.Resolve for element-level callers: failures are
// logged and reported as a missing resource.
func resolve(ctx context.Context, r Resolver, logger *zap.Logger, ref, baseDir string, transform resource.Transform) (resource.Resource, bool) {
	res, err := r.Resolve(ctx, ref, baseDir, transform)
	if err != nil {
		if !errors.Is(err, resource.ErrIgnorableReference) {
			logger.Warn("resource not inlined", zap.String("ref", shorten(ref)), zap.Error(err))
		}
		return resource.Resource{}, false
	}
	if transform != nil && res.Origin == resource.OriginCached {
		logger.Debug("cached resource reused, transform skipped", zap.String("ref", shorten(ref)))
	}
	return res.Resource, true
}

// shorten keeps log fields readable when references are data URLs.
func shorten(s string) string {
	const maxLen = 100
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

