package htmlinline

import (
	"errors"

	"github.com/alnah/go-htmlinline/internal/pipeline"
)

// Sentinel errors for library operations.
var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrReadDocument        = errors.New("reading document failed")
	ErrWriteDocument       = errors.New("writing document failed")

	// ErrParseHTML is returned when markup cannot be parsed at all.
	// Per-resource failures never surface as errors.
	ErrParseHTML = pipeline.ErrParseHTML

	// Option validation errors.
	ErrInvalidCacheSize = errors.New("invalid cache size")
)
