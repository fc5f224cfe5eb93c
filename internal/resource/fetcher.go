package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"github.com/vincent-petithory/dataurl"
)

// Fetcher produces the raw bytes and content type of a classified target.
type Fetcher interface {
	Fetch(ctx context.Context, t Target) (Resource, error)
}

// Compile-time interface checks.
var (
	_ Fetcher = (*FileFetcher)(nil)
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*DataFetcher)(nil)
	_ Fetcher = (*CompositeFetcher)(nil)
)

// Default HTTP limits.
const (
	DefaultMaxBytes = 16 * 1024 * 1024 // 16MB
	DefaultTimeout  = 30 * time.Second
)

// ---------------------------------------------------------------------------
// Local files
// ---------------------------------------------------------------------------

// FileFetcher reads LocalPath targets.
type FileFetcher struct {
	fs afero.Fs
}

// NewFileFetcher creates a FileFetcher over fs (OS filesystem when nil).
func NewFileFetcher(fs afero.Fs) *FileFetcher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileFetcher{fs: fs}
}

// Fetch reads the file. The content type comes from the extension only;
// an unknown extension yields ErrUnknownContentType without reading.
func (f *FileFetcher) Fetch(_ context.Context, t Target) (Resource, error) {
	ct := TypeByExtension(t.Path)
	if ct == "" {
		return Resource{}, fmt.Errorf("%w: %s", ErrUnknownContentType, t.Path)
	}
	data, err := afero.ReadFile(f.fs, t.Path)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return Resource{Reference: t.Reference, Payload: data, ContentType: ct}, nil
}

// ---------------------------------------------------------------------------
// Remote URLs
// ---------------------------------------------------------------------------

// HTTPFetcher issues GET requests for RemoteHTTP targets.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64         // Max body size in bytes (default: 16MB)
	Timeout  time.Duration // Per-request timeout, 0 means the client's own
}

// NewHTTPFetcher creates an HTTPFetcher with default limits.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:   http.DefaultClient,
		MaxBytes: DefaultMaxBytes,
		Timeout:  DefaultTimeout,
	}
}

// Fetch downloads the target. Content type resolution order: response
// header, URL path extension, content sniffing, application/octet-stream.
func (h *HTTPFetcher) Fetch(ctx context.Context, t Target) (Resource, error) {
	if t.URL == nil {
		return Resource{}, fmt.Errorf("%w: missing URL for %s", ErrInvalidReference, t.Reference)
	}

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL.String(), nil)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Resource{}, fmt.Errorf("%w: %w: %d %s", ErrFetch, ErrHTTPStatus, resp.StatusCode, t.URL.Redacted())
	}

	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	// Read with limit + 1 to detect overflow
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return Resource{}, fmt.Errorf("%w: %w: %d bytes", ErrFetch, ErrResponseTooLarge, limit)
	}

	ct := mediaType(resp.Header.Get("Content-Type"))
	if ct == "" {
		ct = TypeByExtension(path.Base(t.URL.Path))
	}
	if ct == "" && len(data) > 0 {
		ct = mediaType(mimetype.Detect(data).String())
	}
	if ct == "" {
		ct = DefaultContentType
	}

	return Resource{Reference: t.Reference, Payload: data, ContentType: ct}, nil
}

// ---------------------------------------------------------------------------
// Data URIs
// ---------------------------------------------------------------------------

// DataFetcher decodes DataURI targets.
type DataFetcher struct{}

// Fetch decodes the base64 or percent-encoded body. The content type is the
// declared media type, application/octet-stream when none is declared.
func (DataFetcher) Fetch(_ context.Context, t Target) (Resource, error) {
	raw := t.Reference
	if i := strings.IndexByte(raw, ':'); i > 0 {
		raw = strings.ToLower(raw[:i]) + raw[i:]
	}

	du, err := dataurl.DecodeString(raw)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: malformed data URI %s: %w", ErrInvalidReference, truncate(t.Reference), err)
	}

	ct := mediaType(du.ContentType())
	if ct == "" {
		ct = DefaultContentType
	}
	return Resource{Reference: t.Reference, Payload: du.Data, ContentType: ct}, nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// CompositeFetcher delegates to a sub-fetcher based on the target kind.
type CompositeFetcher struct {
	fetchers map[Kind]Fetcher
}

// NewCompositeFetcher creates a CompositeFetcher with file, HTTP and data URI
// sub-fetchers. A nil client uses http.DefaultClient.
func NewCompositeFetcher(fs afero.Fs, client *http.Client) *CompositeFetcher {
	hf := NewHTTPFetcher()
	if client != nil {
		hf.Client = client
	}
	c := &CompositeFetcher{fetchers: make(map[Kind]Fetcher)}
	c.Register(LocalPath, NewFileFetcher(fs))
	c.Register(RemoteHTTP, hf)
	c.Register(DataURI, DataFetcher{})
	return c
}

// Register sets the sub-fetcher for a kind, replacing any previous one.
func (c *CompositeFetcher) Register(k Kind, f Fetcher) {
	c.fetchers[k] = f
}

// Fetch delegates to the sub-fetcher registered for t.Kind.
func (c *CompositeFetcher) Fetch(ctx context.Context, t Target) (Resource, error) {
	f, ok := c.fetchers[t.Kind]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, t.Kind)
	}
	return f.Fetch(ctx, t)
}
