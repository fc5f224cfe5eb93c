// Package htmlinline makes HTML and CSS documents self-contained by embedding
// the assets they reference as data URLs.
//
// # Quick Start
//
// Create an inliner and transform a document:
//
//	in, err := htmlinline.NewInliner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := in.TransformHTML(ctx, `<img src="logo.png">`, "/path/to/site")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// out: <img src="data:image/png;base64,..."/>
//
// Whole files are transformed in place with TransformFile, which picks HTML
// or CSS handling from the extension and only writes when something changed.
//
// # Transformation Pipeline
//
// For HTML, each kind of asset is handled by its own pass:
//
//  1. <img src> and <picture><source srcset> become data URLs
//  2. <link rel="stylesheet"> becomes <style>, with url(...) references in
//     the stylesheet embedded too; plain <style> elements are then merged
//  3. <script src> code moves into the element (off by default)
//
// For CSS, url(...) references are embedded. Anchors (#id) and existing
// data URLs are left alone, which makes a second run a no-op.
//
// # Resources
//
// A reference may be a path relative to the base directory, an http(s) URL
// or a data URL. Resources are cached per Inliner: the first resolution
// fetches and caches, later ones reuse the cached bytes. A reference that
// cannot be resolved (missing file, unknown type, network error) is left as
// it was and logged; it never fails the document.
//
// Encodings longer than 10000 characters are not inlined (see
// WithMaxInlineSize). Text resources are percent-encoded with
// charset=utf-8, SVG is optimized and percent-encoded, everything else is
// base64-encoded.
//
// # Configuration
//
// Use functional options to customize the inliner:
//
//	in, err := htmlinline.NewInliner(
//	    htmlinline.WithOptions(htmlinline.Options{Images: true, Styles: true, Scripts: true}),
//	    htmlinline.WithCacheSize(5000),
//	    htmlinline.WithLogger(logger),
//	    htmlinline.WithHTMLFormatter(htmlinline.FormatHTML),
//	)
package htmlinline
