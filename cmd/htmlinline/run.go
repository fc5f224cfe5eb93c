package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	htmlinline "github.com/alnah/go-htmlinline"
	"github.com/alnah/go-htmlinline/internal/config"
	"github.com/alnah/go-htmlinline/internal/hints"
	"github.com/alnah/go-htmlinline/internal/logging"
)

// runInline orchestrates one run: configuration, discovery, the batch and
// its report.
func runInline(ctx context.Context, positional []string, flags *cliFlags, env *Environment) error {
	if err := loadDotEnv(flags.common.envFile); err != nil {
		return err
	}
	warnUnknownEnvVars(env.Stderr)
	envCfg := loadEnvConfig(env.Stderr)

	cfg, err := loadConfig(flags.common.config, envCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if flags.printConfig {
		return printConfig(env.Stdout, cfg)
	}

	logger, closeLog, err := logging.New(logging.Config{
		Level:      logLevel(flags, cfg),
		Console:    env.Stderr,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	roots, err := resolveRoots(positional, cfg.Input.Dir)
	if err != nil {
		return err
	}
	docs, err := discoverDocuments(env.Fs, roots)
	if err != nil {
		return fmt.Errorf("discovering documents: %w", err)
	}

	reg := prometheus.NewRegistry()
	inliner, err := htmlinline.NewInliner(inlinerOptions(cfg, env, logger, reg)...)
	if err != nil {
		return err
	}

	workers := htmlinline.ResolveWorkers(cfg.Workers)
	logger.Debug("starting batch",
		zap.Int("documents", len(docs)),
		zap.Int("workers", workers),
		zap.Bool("dryRun", flags.dryRun),
	)
	if !flags.common.quiet {
		for _, root := range roots {
			fmt.Fprintf(env.Stdout, "Transforming files in %s\n", root)
		}
	}

	results := inlineBatch(ctx, inliner, docs, workers, flags.dryRun)
	failed := printResults(results, printOptions{
		quiet:   flags.common.quiet,
		verbose: flags.common.verbose,
		dryRun:  flags.dryRun,
	}, env)

	if n := remoteFetchErrors(reg); n > 0 && !flags.common.quiet {
		fmt.Fprintf(env.Stderr, "%d remote resource(s) could not be fetched and were left as references%s\n",
			n, hints.ForRemoteFetch())
	}
	logger.Debug("batch done", zap.Int("cachedResources", inliner.CachedResources()))

	if cfg.Metrics.File != "" {
		if err := writeMetricsFile(cfg.Metrics.File, reg); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d document(s)", ErrPartialBatch, failed, len(results))
	}
	return nil
}

// loadConfig loads the config named by the flag or, failing that, by
// HTMLINLINE_CONFIG. Without either, defaults are used.
func loadConfig(flagName, envName string) (*config.Config, error) {
	name := flagName
	if name == "" {
		name = envName
	}
	if name == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(name)
}

// printConfig writes cfg as YAML, after every source has been applied.
func printConfig(w io.Writer, cfg *config.Config) error {
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *cliFlags, cfg *config.Config) {
	if flags.isSet("workers") {
		cfg.Workers = flags.workers
	}

	// Inline toggles: --no-* wins over its positive form
	if flags.isSet("images") {
		cfg.Inline.Images = flags.inline.images
	}
	if flags.inline.noImages {
		cfg.Inline.Images = false
	}
	if flags.isSet("styles") {
		cfg.Inline.Styles = flags.inline.styles
	}
	if flags.inline.noStyles {
		cfg.Inline.Styles = false
	}
	if flags.isSet("scripts") {
		cfg.Inline.Scripts = flags.inline.scripts
	}
	if flags.isSet("prefer-local") {
		cfg.Inline.PreferLocal = flags.inline.preferLocal
	}
	if flags.isSet("max-size") {
		cfg.Inline.MaxSize = flags.inline.maxSize
	}

	// Fetch flags
	if flags.isSet("timeout") {
		cfg.Fetch.Timeout = flags.fetch.timeout
	}
	if flags.isSet("max-bytes") {
		cfg.Fetch.MaxBytes = flags.fetch.maxBytes
	}
	if flags.isSet("cache-size") {
		cfg.Cache.Size = flags.fetch.cacheSize
	}

	// Output flags
	if flags.output.formatHTML {
		cfg.Format.HTML = true
	}
	if flags.output.minifyScripts {
		cfg.Format.MinifyScripts = true
	}
	if flags.output.noFormatCSS {
		cfg.Format.CSS = false
	}
	if flags.output.logFile != "" {
		cfg.Log.File = flags.output.logFile
	}
	if flags.output.metricsFile != "" {
		cfg.Metrics.File = flags.output.metricsFile
	}
}

// logLevel picks the console level: --verbose and --quiet beat log.level.
func logLevel(flags *cliFlags, cfg *config.Config) string {
	switch {
	case flags.common.verbose:
		return "debug"
	case flags.common.quiet:
		return "error"
	default:
		return cfg.Log.Level
	}
}

// inlinerOptions translates cfg into library options.
func inlinerOptions(cfg *config.Config, env *Environment, logger *zap.Logger, reg prometheus.Registerer) []htmlinline.Option {
	opts := []htmlinline.Option{
		htmlinline.WithFs(env.Fs),
		htmlinline.WithLogger(logger),
		htmlinline.WithMetrics(reg),
		htmlinline.WithCacheSize(cfg.Cache.Size),
		htmlinline.WithMaxInlineSize(cfg.Inline.MaxSize),
		htmlinline.WithFetchLimits(cfg.Fetch.MaxBytes, cfg.Fetch.Timeout),
		htmlinline.WithPreferLocal(cfg.Inline.PreferLocal),
		htmlinline.WithOptions(htmlinline.Options{
			Images:  cfg.Inline.Images,
			Styles:  cfg.Inline.Styles,
			Scripts: cfg.Inline.Scripts,
		}),
	}
	if !cfg.Format.CSS {
		opts = append(opts, htmlinline.WithCSSFormatters(nil, nil))
	}
	if cfg.Format.HTML {
		opts = append(opts, htmlinline.WithHTMLFormatter(htmlinline.FormatHTML))
	}
	if cfg.Format.MinifyScripts {
		opts = append(opts, htmlinline.WithScriptFormatter(htmlinline.MinifyJS))
	}
	return opts
}
