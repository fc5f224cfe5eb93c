package main

import (
	"fmt"
	"io"
)

// printUsage prints the command usage.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: htmlinline [flags] [dir|file ...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Embed images, stylesheets and scripts referenced by HTML and CSS files")
	fmt.Fprintln(w, "as data URLs. Files are rewritten in place when their content changes.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  dir|file    Directories are walked for .html, .htm and .css files")
	fmt.Fprintln(w, "              (optional if config has input.dir)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --env-file <path>     HTMLINLINE_* variables file (default: .env)")
	fmt.Fprintln(w, "  -w, --workers <n>         Documents processed in parallel (0 = auto)")
	fmt.Fprintln(w, "  -n, --dry-run             Report growth without writing files")
	fmt.Fprintln(w, "      --print-config        Print the effective configuration and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Inlining:")
	fmt.Fprintln(w, "      --images, --no-images Inline <img> and <picture> sources (default on)")
	fmt.Fprintln(w, "      --styles, --no-styles Inline stylesheets and url() references (default on)")
	fmt.Fprintln(w, "      --scripts             Inline <script src> (default off)")
	fmt.Fprintln(w, "      --prefer-local        Read http(s) URLs from disk when mirrored")
	fmt.Fprintln(w, "      --max-size <n>        Longest data URL in characters (-1 = no limit)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fetching:")
	fmt.Fprintln(w, "  -t, --timeout <d>         Remote fetch timeout (e.g. 10s, 1m)")
	fmt.Fprintln(w, "      --max-bytes <n>       Largest remote response in bytes")
	fmt.Fprintln(w, "      --cache-size <n>      Resources kept in the cache")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "      --format-html         Pretty-print output HTML")
	fmt.Fprintln(w, "      --minify-scripts      Minify inlined scripts")
	fmt.Fprintln(w, "      --no-format-css       Keep inlined CSS as written")
	fmt.Fprintln(w, "      --log-file <path>     Also write JSON logs (rotated)")
	fmt.Fprintln(w, "      --metrics-file <path> Write Prometheus metrics at exit")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show every document and debug logs")
	fmt.Fprintln(w, "  -h, --help                Show this help")
	fmt.Fprintln(w, "      --version             Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes: 0 success, 1 error, 2 usage or config, 3 I/O, 4 some documents failed")
}
