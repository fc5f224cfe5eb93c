package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/alnah/go-htmlinline/internal/encode"
	"github.com/alnah/go-htmlinline/internal/resource"
)

var testBase = filepath.FromSlash("/site")

// pngBytes is a tiny payload served as image/png.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

// countingFetcher counts fetches per reference before delegating.
type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	next  resource.Fetcher
}

func (f *countingFetcher) Fetch(ctx context.Context, t resource.Target) (resource.Resource, error) {
	f.mu.Lock()
	f.calls[t.Reference]++
	f.mu.Unlock()
	return f.next.Fetch(ctx, t)
}

func (f *countingFetcher) count(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fixture struct {
	cache   *resource.Cache
	fetcher *countingFetcher
	fs      afero.Fs
}

// newFixture builds a cache over an in-memory site rooted at /site.
// files maps site-relative paths to contents.
func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, content := range files {
		full := filepath.Join(testBase, filepath.FromSlash(p))
		if err := afero.WriteFile(fs, full, []byte(content), 0o644); err != nil {
			t.Fatalf("setup %s: %v", p, err)
		}
	}

	fetcher := &countingFetcher{calls: make(map[string]int), next: resource.NewCompositeFetcher(fs, nil)}
	cache, err := resource.NewCache(0,
		resource.WithClassifier(resource.NewClassifier(fs, false)),
		resource.WithFetcher(fetcher),
	)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return &fixture{cache: cache, fetcher: fetcher, fs: fs}
}

// identityConfig wires the fixture with no collaborators, so outputs are
// predictable byte for byte.
func (f *fixture) identityConfig() Config {
	return Config{
		Resolver:    f.cache,
		Encoder:     encode.Encoder{},
		Concurrency: 4,
	}
}

var allOptions = Options{Images: true, Styles: true, Scripts: true}
