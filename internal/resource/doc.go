// Package resource resolves asset references into bytes and a content type.
//
// # Resolution Architecture
//
//	Cache.Resolve(ref, baseDir, transform)
//	    │
//	    ├── Normalize     - strips surrounding quotes and whitespace (cache key)
//	    ├── Classifier    - LocalPath, RemoteHTTP, DataURI, Ignorable, Invalid
//	    ├── Fetcher       - reads disk (afero), issues HTTP GET, decodes data URIs
//	    └── Transform     - optional caller hook applied once before storing
//
// The Cache is an explicit object created by the batch driver and shared by
// every document in the batch. It guarantees at most one fetch per normalized
// reference while the entry stays in the LRU: concurrent misses for the same
// key share one in-flight fetch.
//
// # First Transform Wins
//
// The transform passed by the first caller to resolve a reference is the one
// whose output is cached. Later callers receive the cached payload whatever
// transform they pass. Result.Origin tells the two cases apart: OriginFetched
// means this call ran the fetch and its transform; OriginCached means it did
// not.
package resource
