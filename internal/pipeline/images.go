package pipeline

import (
	"context"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/alnah/go-htmlinline/internal/resource"
)

var (
	imgSelector    = cascadia.MustCompile("img[src]")
	sourceSelector = cascadia.MustCompile("picture > source[srcset]")
)

// imageTasks inlines img[src]. Sources that are already data URLs are skipped.
func (d *DocumentInliner) imageTasks(doc *html.Node, baseDir string) []task {
	var tasks []task
	for _, n := range imgSelector.MatchAll(doc) {
		src, _ := getAttr(n, "src")
		if key := resource.Normalize(src); key == "" || resource.IsIgnorable(key) {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) patch {
			inline, ok := d.inlineRef(ctx, src, baseDir)
			if !ok {
				return nil
			}
			return func() { setAttr(n, "src", inline) }
		})
	}
	return tasks
}

// srcsetTasks inlines every candidate of picture > source[srcset].
// Candidates that cannot be inlined keep their URL and descriptor.
func (d *DocumentInliner) srcsetTasks(doc *html.Node, baseDir string) []task {
	var tasks []task
	for _, n := range sourceSelector.MatchAll(doc) {
		srcset, _ := getAttr(n, "srcset")
		candidates := parseSrcset(srcset)
		if len(candidates) == 0 {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) patch {
			changed := false
			out := make([]srcCandidate, len(candidates))
			for i, c := range candidates {
				out[i] = c
				if resource.IsIgnorable(c.url) {
					continue
				}
				if inline, ok := d.inlineRef(ctx, c.url, baseDir); ok {
					out[i].url = inline
					changed = true
				}
			}
			if !changed {
				return nil
			}
			value := formatSrcset(out)
			return func() { setAttr(n, "srcset", value) }
		})
	}
	return tasks
}

// inlineRef resolves and encodes ref. It reports false when the resource is
// missing or its inline form is over the size ceiling.
func (d *DocumentInliner) inlineRef(ctx context.Context, ref, baseDir string) (string, bool) {
	res, ok := resolve(ctx, d.resolver, d.logger, ref, baseDir, nil)
	if !ok {
		return "", false
	}
	inline, inlined := d.encoder.Encode(res)
	if !inlined {
		d.logger.Debug("resource too large to inline",
			zap.String("ref", shorten(ref)),
			zap.Int("size", len(res.Payload)))
		return "", false
	}
	return inline, true
}

// ---------------------------------------------------------------------------
// srcset
// ---------------------------------------------------------------------------

// srcCandidate is one image candidate of a srcset attribute.
type srcCandidate struct {
	url        string
	descriptor string // "2x", "480w" or empty
}

// parseSrcset splits a srcset value into candidates. A URL runs until
// whitespace, so commas inside data URLs do not split it; a trailing comma
// glued to the URL ends the candidate. Descriptors run to the next comma
// outside parentheses.
func parseSrcset(s string) []srcCandidate {
	var out []srcCandidate
	i := 0
	for i < len(s) {
		for i < len(s) && (isHTMLSpace(s[i]) || s[i] == ',') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && !isHTMLSpace(s[i]) {
			i++
		}
		u := s[start:i]

		if strings.HasSuffix(u, ",") {
			out = append(out, srcCandidate{url: strings.TrimRight(u, ",")})
			continue
		}

		descStart, depth := i, 0
	descriptor:
		for i < len(s) {
			switch s[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					break descriptor
				}
			}
			i++
		}
		out = append(out, srcCandidate{url: u, descriptor: strings.Join(strings.Fields(s[descStart:i]), " ")})
	}
	return out
}

// formatSrcset joins candidates back into a srcset value.
func formatSrcset(cs []srcCandidate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c.descriptor == "" {
			parts[i] = c.url
			continue
		}
		parts[i] = c.url + " " + c.descriptor
	}
	return strings.Join(parts, ", ")
}

func isHTMLSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
