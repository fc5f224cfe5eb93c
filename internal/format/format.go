// Package format provides the text collaborators of the inlining pipeline:
// minifiers, pretty-printers and the SVG optimizer.
//
// Every collaborator is a Func. Callers run them through Apply, which keeps
// the input text when a collaborator fails.
package format

import (
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/yosssi/gohtml"
)

// Func transforms text. A nil Func is the identity.
type Func func(string) (string, error)

// Media types understood by the shared minifier.
const (
	cssType = "text/css"
	jsType  = "text/javascript"
	svgType = "image/svg+xml"
)

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(cssType, css.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.Add(svgType, &svg.Minifier{KeepComments: false})
	return m
}

// Apply runs f on s and returns its output, or s when f is nil or fails.
// The error is returned for logging only; the text is always usable.
func Apply(f Func, s string) (string, error) {
	if f == nil {
		return s, nil
	}
	out, err := f(s)
	if err != nil {
		return s, err
	}
	return out, nil
}

// MinifyCSS minifies a stylesheet. Quoting and whitespace around url()
// arguments come out normalized.
func MinifyCSS(s string) (string, error) {
	return minifier.String(cssType, s)
}

// MinifyJS minifies a script.
func MinifyJS(s string) (string, error) {
	return minifier.String(jsType, s)
}

// OptimizeSVG minifies SVG markup.
func OptimizeSVG(s string) (string, error) {
	return minifier.String(svgType, s)
}

// FormatHTML indents HTML markup.
func FormatHTML(s string) (string, error) {
	return gohtml.Format(s), nil
}
