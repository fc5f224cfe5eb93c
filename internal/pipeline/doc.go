// Package pipeline rewrites HTML documents and CSS stylesheets so that the
// assets they reference are embedded as data URLs.
//
// # Document Inliner
//
// DocumentInliner parses a document (or fragment) with x/net/html and runs
// one sub-pass per asset kind, each gated by Options:
//   - img[src]: src becomes a data URL
//   - picture > source[srcset]: each candidate URL becomes a data URL,
//     descriptors are kept
//   - link[rel=stylesheet]: replaced by <style type="text/css"> holding the
//     rewritten stylesheet, then every plain <style> is merged into one
//   - script[src]: the code moves into the element and src is removed
//
// Resolution of all elements runs concurrently; DOM mutations are applied
// sequentially once every resolution has finished.
//
// # Stylesheet Rewriter
//
// StylesheetRewriter works on CSS text. It scans url(...) spans with a small
// tokenizer (quoted arguments may hold parentheses and commas) and replaces
// each one with url('<data URL>'), or with the original argument in single
// quotes when it cannot be inlined. Everything outside the spans is left to
// the minifier and pretty-printer collaborators.
//
// Failures are per element: a reference that cannot be resolved is logged
// and left untouched, and the rest of the document proceeds.
package pipeline
