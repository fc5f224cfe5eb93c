package pipeline

import (
	"context"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	linkSelector  = cascadia.MustCompile("link[href]")
	styleSelector = cascadia.MustCompile("style")
)

// stylesheetTasks replaces each link[rel=stylesheet] with a <style> holding
// the rewritten stylesheet. The rewrite runs as the resolution transform,
// so each distinct stylesheet is rewritten once per batch. A link whose
// stylesheet cannot be resolved stays in place.
func (d *DocumentInliner) stylesheetTasks(doc *html.Node, baseDir string) []task {
	var tasks []task
	for _, n := range linkSelector.MatchAll(doc) {
		if !isStylesheetLink(n) {
			continue
		}
		href, _ := getAttr(n, "href")
		media, _ := getAttr(n, "media")

		tasks = append(tasks, func(ctx context.Context) patch {
			transform := func(ctx context.Context, b []byte) ([]byte, error) {
				return []byte(d.styles.Rewrite(ctx, string(b), baseDir)), nil
			}
			res, ok := resolve(ctx, d.resolver, d.logger, href, baseDir, transform)
			if !ok {
				return nil
			}
			css := string(res.Payload)
			return func() {
				style := newStyleElement(css)
				if m := strings.TrimSpace(media); m != "" && !strings.EqualFold(m, "all") {
					setAttr(style, "media", m)
				}
				if n.Parent != nil {
					n.Parent.InsertBefore(style, n)
					n.Parent.RemoveChild(n)
				}
			}
		})
	}
	return tasks
}

func isStylesheetLink(n *html.Node) bool {
	rel, _ := getAttr(n, "rel")
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, "stylesheet") {
			return true
		}
	}
	return false
}

// mergeStyles collapses every plain <style> (no attributes, or only
// type="text/css") into one, in document order. The merged text has its
// whitespace collapsed and goes through the stylesheet rewriter again. The
// merged element is appended to <head>, or takes the place of the first
// merged element when the document has no head.
func (d *DocumentInliner) mergeStyles(ctx context.Context, doc *html.Node, baseDir string) {
	var plain []*html.Node
	for _, n := range styleSelector.MatchAll(doc) {
		if isPlainStyle(n) {
			plain = append(plain, n)
		}
	}
	if len(plain) == 0 {
		return
	}

	texts := make([]string, len(plain))
	for i, n := range plain {
		texts[i] = textContent(n)
	}
	collapsed := strings.Join(strings.Fields(strings.Join(texts, "\n")), " ")
	merged := newStyleElement(d.styles.Rewrite(ctx, collapsed, baseDir))

	if head := findElement(doc, atom.Head); head != nil {
		head.AppendChild(merged)
	} else {
		first := plain[0]
		first.Parent.InsertBefore(merged, first)
	}

	for _, n := range plain {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func isPlainStyle(n *html.Node) bool {
	if n.Namespace != "" {
		return false // SVG or MathML
	}
	switch len(n.Attr) {
	case 0:
		return true
	case 1:
		a := n.Attr[0]
		return strings.EqualFold(a.Key, "type") && strings.EqualFold(strings.TrimSpace(a.Val), "text/css")
	default:
		return false
	}
}
