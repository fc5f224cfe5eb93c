package main

import (
	"context"
	"errors"
	"os"

	htmlinline "github.com/alnah/go-htmlinline"
	"github.com/alnah/go-htmlinline/internal/config"
	"github.com/alnah/go-htmlinline/internal/hints"
	"github.com/alnah/go-htmlinline/internal/logging"
)

// Exit codes for the htmlinline CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Every document transformed
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitPartial = 4 // Some documents failed, the rest were transformed
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Partial batch failure (exit 4)
	if errors.Is(err, ErrPartialBatch) {
		return ExitPartial
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrNoDocuments) ||
		errors.Is(err, ErrEnvFile) ||
		errors.Is(err, ErrMetricsFile) ||
		errors.Is(err, logging.ErrLogFile) ||
		errors.Is(err, htmlinline.ErrDocumentNotFound) ||
		errors.Is(err, htmlinline.ErrReadDocument) ||
		errors.Is(err, htmlinline.ErrWriteDocument) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, logging.ErrInvalidLevel) ||
		errors.Is(err, htmlinline.ErrUnsupportedDocument) ||
		errors.Is(err, htmlinline.ErrInvalidCacheSize) {
		return ExitUsage
	}

	return ExitGeneral
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	var notFound *config.ConfigNotFoundError
	switch {
	case errors.As(err, &notFound):
		return hints.ForConfigNotFound(notFound.Tried)
	case errors.Is(err, htmlinline.ErrUnsupportedDocument):
		return hints.ForUnsupportedDocument()
	case errors.Is(err, htmlinline.ErrWriteDocument):
		return hints.ForWriteDocument()
	case errors.Is(err, logging.ErrLogFile):
		return hints.ForLogFile()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	}
	return ""
}

// formatError renders err with its hint for the terminal.
func formatError(err error) string {
	return err.Error() + hintFor(err)
}
