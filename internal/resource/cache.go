package resource

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of resources kept before LRU eviction.
const DefaultCacheSize = 1000

// Cache resolves references through a Classifier and a Fetcher and keeps the
// results in a bounded LRU. It is safe for concurrent use.
//
// Concurrent misses on one key share a single fetch. Calls made from inside a
// transform (nested calls) are tracked through the context: resolving a key
// that is already being transformed further up the same chain fails with
// ErrCyclicReference instead of waiting on itself.
type Cache struct {
	classifier *Classifier
	fetcher    Fetcher
	entries    *lru.Cache[string, Resource]
	logger     *zap.Logger
	metrics    *Metrics

	// leaf shares fetches: every miss reads through it, with or without a
	// transform, and a leaf flight never resolves other references, so
	// waiting on one cannot deadlock. transformed shares top-level
	// fetch-and-transform runs, which may resolve other references.
	leaf        singleflight.Group
	transformed singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFetcher sets the fetcher. Default: CompositeFetcher over the OS
// filesystem and http.DefaultClient.
func WithFetcher(f Fetcher) CacheOption {
	return func(c *Cache) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithClassifier sets the classifier. Default: OS filesystem, no local preference.
func WithClassifier(cl *Classifier) CacheOption {
	return func(c *Cache) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithLogger sets the logger for resolution diagnostics.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates a Cache holding at most size resources.
// A size of zero or less uses DefaultCacheSize.
func NewCache(size int, opts ...CacheOption) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Resource](size)
	if err != nil {
		return nil, fmt.Errorf("creating resource cache: %w", err)
	}

	c := &Cache{
		entries: entries,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.classifier == nil {
		c.classifier = NewClassifier(nil, false)
	}
	if c.fetcher == nil {
		c.fetcher = NewCompositeFetcher(nil, nil)
	}
	return c, nil
}

// Resolve returns the resource named by ref, fetching it on first use.
//
// On a miss the fetched payload goes through transform (when non-nil) and
// the output is cached. On a hit transform is ignored and the result is
// tagged OriginCached. Ignorable and invalid references return an error
// satisfying IsAbsent and never reach the fetcher or the cache.
func (c *Cache) Resolve(ctx context.Context, ref, baseDir string, transform Transform) (Result, error) {
	key := Normalize(ref)
	if IsIgnorable(key) {
		return Result{}, fmt.Errorf("%w: %s", ErrIgnorableReference, truncate(key))
	}

	if res, ok := c.entries.Get(key); ok {
		c.metrics.hit()
		return Result{Resource: res, Origin: OriginCached}, nil
	}

	target, err := c.classifier.Classify(key, baseDir)
	if err != nil {
		return Result{}, err
	}

	parent := chainFrom(ctx)
	if parent.contains(key) {
		return Result{}, fmt.Errorf("%w: %s", ErrCyclicReference, truncate(key))
	}

	// Nested calls carrying a transform bypass in-flight sharing: the flight
	// they would join may itself be waiting on this chain. Calls without a
	// transform only ever wait on a fetch, which never nests.
	if transform == nil || parent != nil {
		return c.load(ctx, target, transform)
	}

	ran := false
	v, err, _ := c.transformed.Do(key, func() (any, error) {
		ran = true
		return c.load(ctx, target, transform)
	})
	if err != nil {
		return Result{}, err
	}

	res := v.(Result)
	if !ran {
		res.Origin = OriginCached
	}
	return res, nil
}

// load fetches, transforms and stores one target.
func (c *Cache) load(ctx context.Context, t Target, transform Transform) (Result, error) {
	if res, ok := c.entries.Get(t.Reference); ok {
		c.metrics.hit()
		return Result{Resource: res, Origin: OriginCached}, nil
	}

	f, err := c.fetch(ctx, t, transform == nil)
	if err != nil {
		return Result{}, err
	}
	if f.stored {
		return Result{Resource: f.res, Origin: f.origin}, nil
	}

	res := f.res
	if transform != nil {
		out, err := transform(withChain(ctx, t.Reference), res.Payload)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrTransform, truncate(t.Reference), err)
		}
		res.Payload = out
	}

	// First store wins: a concurrent load may have stored the key while this
	// one was fetching or transforming.
	if prev, found, _ := c.entries.PeekOrAdd(t.Reference, res); found {
		return Result{Resource: prev, Origin: OriginCached}, nil
	}
	c.logResolved(t, res)
	return Result{Resource: res, Origin: OriginFetched}, nil
}

// fetched is the outcome of a shared fetch.
type fetched struct {
	res    Resource
	stored bool   // the flight already cached res as fetched
	origin Origin // for stored results, as seen by this caller
}

// fetch reads t through the leaf flight for its key, so concurrent misses
// share one read whether or not they carry a transform. With store set, the
// flight that runs also caches the raw payload; joiners then see it as
// cached. A transform joining such a flight is ignored, as for any hit.
func (c *Cache) fetch(ctx context.Context, t Target, store bool) (fetched, error) {
	ran := false
	v, err, _ := c.leaf.Do(t.Reference, func() (any, error) {
		ran = true
		c.metrics.miss()

		res, err := c.fetcher.Fetch(ctx, t)
		c.metrics.fetched(t.Kind, len(res.Payload), err)
		if err != nil {
			c.logger.Debug("fetch failed",
				zap.String("ref", truncate(t.Reference)),
				zap.Stringer("kind", t.Kind),
				zap.Error(err))
			return nil, err
		}
		res.Reference = t.Reference

		f := fetched{res: res}
		if store {
			f.stored = true
			f.origin = OriginFetched
			if prev, found, _ := c.entries.PeekOrAdd(t.Reference, res); found {
				f.res = prev
				f.origin = OriginCached
			} else {
				c.logResolved(t, res)
			}
		}
		return f, nil
	})
	if err != nil {
		return fetched{}, err
	}

	f := v.(fetched)
	if !ran {
		f.origin = OriginCached
	}
	return f, nil
}

func (c *Cache) logResolved(t Target, res Resource) {
	c.logger.Debug("resolved",
		zap.String("ref", truncate(t.Reference)),
		zap.Stringer("kind", t.Kind),
		zap.String("contentType", res.ContentType),
		zap.Int("size", len(res.Payload)))
}

// Peek returns a cached resource without fetching or updating recency.
func (c *Cache) Peek(ref string) (Resource, bool) {
	return c.entries.Peek(Normalize(ref))
}

// Len returns the number of cached resources.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// ---------------------------------------------------------------------------
// Resolution chain
// ---------------------------------------------------------------------------

type chainKey struct{}

// chain lists the keys whose transforms are running, innermost first.
type chain struct {
	key    string
	parent *chain
}

func chainFrom(ctx context.Context) *chain {
	ch, _ := ctx.Value(chainKey{}).(*chain)
	return ch
}

func withChain(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, chainKey{}, &chain{key: key, parent: chainFrom(ctx)})
}

func (ch *chain) contains(key string) bool {
	for ; ch != nil; ch = ch.parent {
		if ch.key == key {
			return true
		}
	}
	return false
}
