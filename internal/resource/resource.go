package resource

import (
	"context"
	"net/url"
)

// DefaultContentType is used when nothing better is known about a payload.
const DefaultContentType = "application/octet-stream"

// Resource is a resolved asset. Once stored in a Cache its fields are
// immutable: callers must not modify Payload.
type Resource struct {
	Reference   string // normalized reference, the cache key
	Payload     []byte
	ContentType string // bare media type, no parameters
}

// Transform post-processes fetched bytes before they are cached.
// It runs at most once per distinct reference.
type Transform func(ctx context.Context, payload []byte) ([]byte, error)

// Origin tells whether a Result came from a fresh fetch or the cache.
type Origin int

const (
	// OriginFetched means this call fetched the resource and applied its transform.
	OriginFetched Origin = iota
	// OriginCached means the resource was already cached; the transform was ignored.
	OriginCached
)

func (o Origin) String() string {
	if o == OriginCached {
		return "cached"
	}
	return "fetched"
}

// Result is the outcome of a successful resolution.
type Result struct {
	Resource Resource
	Origin   Origin
}

// Kind classifies a reference.
type Kind int

const (
	Invalid Kind = iota
	Ignorable
	LocalPath
	RemoteHTTP
	DataURI
)

func (k Kind) String() string {
	switch k {
	case Ignorable:
		return "ignorable"
	case LocalPath:
		return "local"
	case RemoteHTTP:
		return "remote"
	case DataURI:
		return "data"
	default:
		return "invalid"
	}
}

// Target is a classified reference, ready to fetch.
type Target struct {
	Reference string   // normalized reference
	Kind      Kind     // classification
	Path      string   // filesystem path, set for LocalPath
	URL       *url.URL // parsed URL, set for RemoteHTTP and DataURI
}
