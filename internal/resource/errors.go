package resource

import "errors"

// Sentinel errors for resolution.
var (
	// ErrIgnorableReference indicates an anchor or an already inlined data URL.
	ErrIgnorableReference = errors.New("ignorable reference")

	// ErrInvalidReference indicates a reference that is neither a usable URL
	// nor an existing file under the base directory.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrUnknownContentType indicates a local file whose extension maps to no MIME type.
	ErrUnknownContentType = errors.New("unknown content type")

	// ErrPathTraversal indicates a local reference resolving outside the base directory.
	ErrPathTraversal = errors.New("path escapes base directory")

	// ErrFetch indicates a read or network failure.
	ErrFetch = errors.New("fetch failed")

	// ErrHTTPStatus indicates a non-2xx response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrResponseTooLarge indicates a body larger than the configured limit.
	ErrResponseTooLarge = errors.New("response exceeds maximum size")

	// ErrUnsupportedKind indicates a target kind no fetcher handles.
	ErrUnsupportedKind = errors.New("unsupported reference kind")

	// ErrCyclicReference indicates a transform that resolves the reference it
	// is transforming.
	ErrCyclicReference = errors.New("cyclic reference")

	// ErrTransform wraps failures returned by a caller-supplied transform.
	ErrTransform = errors.New("transform failed")
)

// IsAbsent reports whether err means "no resource" rather than a failed fetch.
// Absent references are skipped without touching the document.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrIgnorableReference) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrUnknownContentType)
}
