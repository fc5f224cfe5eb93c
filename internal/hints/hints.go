// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/alnah/go-htmlinline/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists(afero.NewOsFs(), "/.dockerenv")
}

// ForRemoteFetch returns hints for failed http(s) fetches.
// In CI or containers without a proxy configured, suggests setting one;
// always suggests reading mirrored sites from disk instead.
func ForRemoteFetch() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	noProxy := os.Getenv("HTTPS_PROXY") == "" && os.Getenv("https_proxy") == ""
	if (inCI || IsInContainer()) && noProxy {
		hints = append(hints, "set HTTPS_PROXY if outbound traffic goes through a proxy")
	}

	hints = append(hints, "use --prefer-local when the site is mirrored on disk")
	return formatHints(hints)
}

// ForTimeout returns a hint about raising the fetch timeout for slow hosts.
func ForTimeout() string {
	return format("for slow hosts, raise fetch.timeout or HTMLINLINE_FETCH_TIMEOUT")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in the user config dir.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	// Find a user config path to suggest
	for _, p := range searchedPaths {
		if strings.Contains(filepathSlash(p), "/go-htmlinline/") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForUnsupportedDocument lists the extensions that are transformed.
func ForUnsupportedDocument() string {
	return format("supported extensions: .html, .htm, .css")
}

// ForWriteDocument returns hints for documents that could not be replaced.
func ForWriteDocument() string {
	return format("check the file and its directory are writable, or use --dry-run")
}

// ForLogFile returns hints for log files that cannot be opened.
func ForLogFile() string {
	return format("check the log directory exists and is writable")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}

func filepathSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
