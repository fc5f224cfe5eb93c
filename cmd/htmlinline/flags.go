package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// ErrUsage wraps flag parsing failures.
var ErrUsage = errors.New("invalid usage")

// commonFlags holds output verbosity and config selection.
type commonFlags struct {
	config  string
	envFile string
	quiet   bool
	verbose bool
}

// inlineFlags selects what gets embedded. Values only apply when the flag
// was given, so config and env settings are not reset by flag defaults.
type inlineFlags struct {
	images      bool
	noImages    bool
	styles      bool
	noStyles    bool
	scripts     bool
	preferLocal bool
	maxSize     int
}

// fetchFlags bounds remote fetches and the cache.
type fetchFlags struct {
	timeout   time.Duration
	maxBytes  int64
	cacheSize int
}

// outputFlags controls formatting, logs and metrics.
type outputFlags struct {
	formatHTML    bool
	minifyScripts bool
	noFormatCSS   bool
	logFile       string
	metricsFile   string
}

// cliFlags holds every flag of the htmlinline command.
type cliFlags struct {
	common      commonFlags
	inline      inlineFlags
	fetch       fetchFlags
	output      outputFlags
	workers     int
	dryRun      bool
	printConfig bool
	help        bool
	version     bool

	set map[string]bool // flags given on the command line
}

// isSet reports whether the named flag was given explicitly.
func (f *cliFlags) isSet(name string) bool {
	return f.set[name]
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVar(&f.envFile, "env-file", "", "load HTMLINLINE_* variables from this file (default: .env if present)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show every document and debug logs")
}

func addInlineFlags(fs *flag.FlagSet, f *inlineFlags) {
	fs.BoolVar(&f.images, "images", true, "inline <img> and <picture> sources")
	fs.BoolVar(&f.noImages, "no-images", false, "leave images referenced")
	fs.BoolVar(&f.styles, "styles", true, "inline stylesheets and url() references")
	fs.BoolVar(&f.noStyles, "no-styles", false, "leave stylesheets referenced")
	fs.BoolVar(&f.scripts, "scripts", false, "inline <script src>")
	fs.BoolVar(&f.preferLocal, "prefer-local", false, "read http(s) URLs from disk when the site is mirrored")
	fs.IntVar(&f.maxSize, "max-size", 0, "longest data URL in characters (-1 = no limit)")
}

func addFetchFlags(fs *flag.FlagSet, f *fetchFlags) {
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "remote fetch timeout (e.g. 10s, 1m)")
	fs.Int64Var(&f.maxBytes, "max-bytes", 0, "largest remote response in bytes")
	fs.IntVar(&f.cacheSize, "cache-size", 0, "resources kept in the cache")
}

func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.BoolVar(&f.formatHTML, "format-html", false, "pretty-print output HTML")
	fs.BoolVar(&f.minifyScripts, "minify-scripts", false, "minify inlined scripts")
	fs.BoolVar(&f.noFormatCSS, "no-format-css", false, "keep inlined CSS as written")
	fs.StringVar(&f.logFile, "log-file", "", "also write JSON logs to this file (rotated)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")
}

func newFlagSet(f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("htmlinline", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVarP(&f.workers, "workers", "w", 0, "documents processed in parallel (0 = auto)")
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "report growth without writing files")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	fs.BoolVarP(&f.help, "help", "h", false, "show this help")
	fs.BoolVar(&f.version, "version", false, "show version")

	addCommonFlags(fs, &f.common)
	addInlineFlags(fs, &f.inline)
	addFetchFlags(fs, &f.fetch)
	addOutputFlags(fs, &f.output)

	return fs
}

// parseFlags parses command-line flags (without the program name) and
// returns positional args.
func parseFlags(args []string) (*cliFlags, []string, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs := newFlagSet(f)

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w: %v (see htmlinline --help)", ErrUsage, err)
	}
	fs.Visit(func(fl *flag.Flag) {
		f.set[fl.Name] = true
	})

	if f.common.quiet && f.common.verbose {
		return nil, nil, fmt.Errorf("%w: --quiet and --verbose are mutually exclusive", ErrUsage)
	}
	return f, fs.Args(), nil
}
