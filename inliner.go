package htmlinline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alnah/go-htmlinline/internal/encode"
	"github.com/alnah/go-htmlinline/internal/fileutil"
	"github.com/alnah/go-htmlinline/internal/format"
	"github.com/alnah/go-htmlinline/internal/pipeline"
	"github.com/alnah/go-htmlinline/internal/resource"
)

// Inliner embeds the assets referenced by HTML and CSS documents.
// All documents transformed by one Inliner share one resource cache, so each
// distinct reference is fetched at most once while it stays cached.
// An Inliner is safe for concurrent use.
type Inliner struct {
	fs       afero.Fs
	cache    *resource.Cache
	document *pipeline.DocumentInliner
	options  Options
	logger   *zap.Logger
	metrics  *documentMetrics
}

// NewInliner creates an Inliner with default configuration.
// Use options to customize behavior (e.g., WithOptions, WithCacheSize, WithLogger).
func NewInliner(opts ...Option) (*Inliner, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.cacheSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCacheSize, cfg.cacheSize)
	}
	if cfg.fs == nil {
		cfg.fs = afero.NewOsFs()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	fetcher := resource.NewCompositeFetcher(cfg.fs, cfg.client)
	remote := resource.NewHTTPFetcher()
	if cfg.client != nil {
		remote.Client = cfg.client
	}
	remote.MaxBytes = cfg.maxFetchBytes
	remote.Timeout = cfg.fetchTimeout
	fetcher.Register(resource.RemoteHTTP, remote)

	var resourceMetrics *resource.Metrics
	if cfg.registerer != nil {
		resourceMetrics = resource.NewMetrics(cfg.registerer)
	}

	cache, err := resource.NewCache(cfg.cacheSize,
		resource.WithClassifier(resource.NewClassifier(cfg.fs, cfg.preferLocal)),
		resource.WithFetcher(fetcher),
		resource.WithLogger(cfg.logger),
		resource.WithMetrics(resourceMetrics),
	)
	if err != nil {
		return nil, err
	}

	document := pipeline.NewDocumentInliner(pipeline.Config{
		Resolver: cache,
		Encoder: encode.Encoder{
			MaxSize:     cfg.maxInlineSize,
			OptimizeSVG: format.OptimizeSVG,
		},
		Collaborators: pipeline.Collaborators{
			MinifyCSS: format.Func(cfg.minifyCSS),
			PrettyCSS: format.Func(cfg.prettyCSS),
			Script:    format.Func(cfg.script),
			HTML:      format.Func(cfg.html),
		},
		Logger:      cfg.logger,
		Concurrency: cfg.concurrency,
	})

	return &Inliner{
		fs:       cfg.fs,
		cache:    cache,
		document: document,
		options:  cfg.options,
		logger:   cfg.logger,
		metrics:  newDocumentMetrics(cfg.registerer),
	}, nil
}

// TransformHTML returns html with its assets embedded. Relative references
// are resolved against dir. Input starting with <!doctype or <html (or
// holding both <head and <body) is treated as a full document; anything else
// as a fragment, rendered without the implied html/head/body wrappers.
func (in *Inliner) TransformHTML(ctx context.Context, html, dir string) (string, error) {
	return in.document.Inline(ctx, html, dir, pipeline.Options{
		Images:  in.options.Images,
		Styles:  in.options.Styles,
		Scripts: in.options.Scripts,
	})
}

// TransformCSS returns css with every url(...) reference it can resolve
// replaced by a data URL. Stylesheets are rewritten regardless of
// Options.Styles, which only gates what happens inside HTML.
func (in *Inliner) TransformCSS(ctx context.Context, css, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return in.document.Stylesheets().Rewrite(ctx, css, dir), nil
}

// TransformFile transforms the document at path in place. The document type
// is taken from the extension: .html and .htm are HTML, .css is CSS.
// The file is rewritten only when the output differs from the input.
// Recovers from internal panics so one bad document cannot take down a batch.
func (in *Inliner) TransformFile(ctx context.Context, baseDir, path string) (result FileResult, err error) {
	return in.transformFile(ctx, baseDir, path, true)
}

// PreviewFile is TransformFile without the write.
func (in *Inliner) PreviewFile(ctx context.Context, baseDir, path string) (FileResult, error) {
	return in.transformFile(ctx, baseDir, path, false)
}

func (in *Inliner) transformFile(ctx context.Context, baseDir, path string, write bool) (result FileResult, err error) {
	result.Path = path
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
		in.metrics.observe(result, err)
	}()

	transform, err := in.transformerFor(path)
	if err != nil {
		return result, err
	}

	data, err := afero.ReadFile(in.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return result, fmt.Errorf("%w: %v", ErrReadDocument, err)
	}
	input := string(data)
	result.InputSize = len(input)

	output, err := transform(ctx, input, baseDir)
	if err != nil {
		return result, fmt.Errorf("transforming %s: %w", path, err)
	}
	result.OutputSize = len(output)
	result.Changed = output != input

	if !result.Changed || !write {
		return result, nil
	}
	if err := fileutil.WriteFileAtomic(in.fs, path, []byte(output), 0o644); err != nil {
		return result, fmt.Errorf("%w: %v", ErrWriteDocument, err)
	}

	in.logger.Debug("document inlined",
		zap.String("path", path),
		zap.Int("size", result.OutputSize),
		zap.Int("growth", result.Growth()),
	)
	return result, nil
}

type transformFunc func(ctx context.Context, content, dir string) (string, error)

func (in *Inliner) transformerFor(path string) (transformFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return in.TransformHTML, nil
	case ".css":
		return in.TransformCSS, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, path)
	}
}

// IsDocument reports whether TransformFile accepts path.
func IsDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".css":
		return true
	}
	return false
}

// CachedResources returns the number of resources currently cached.
func (in *Inliner) CachedResources() int {
	return in.cache.Len()
}
