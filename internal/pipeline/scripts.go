package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/alnah/go-htmlinline/internal/format"
)

var scriptSelector = cascadia.MustCompile("script[src]")

// sourceMapComment matches a source-map reference with or without the
// leading // marker.
var sourceMapComment = regexp.MustCompile(`(//)?# sourceMappingURL=.*`)

// scriptTasks moves the code of each script[src] into the element.
// The code is formatted, stripped of source-map references and trimmed
// before it is cached.
func (d *DocumentInliner) scriptTasks(doc *html.Node, baseDir string) []task {
	var tasks []task
	for _, n := range scriptSelector.MatchAll(doc) {
		src, _ := getAttr(n, "src")
		if strings.TrimSpace(src) == "" {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) patch {
			res, ok := resolve(ctx, d.resolver, d.logger, src, baseDir, d.scriptTransform)
			if !ok {
				return nil
			}
			code := escapeRawText(string(res.Payload))
			return func() {
				removeAttr(n, "src")
				setText(n, code)
			}
		})
	}
	return tasks
}

func (d *DocumentInliner) scriptTransform(_ context.Context, b []byte) ([]byte, error) {
	code, err := format.Apply(d.script, string(b))
	if err != nil {
		d.logger.Warn("script format failed", zap.Error(err))
	}
	return []byte(strings.TrimSpace(StripSourceMaps(code))), nil
}

// StripSourceMaps removes source-map references line by line.
// "//# sourceMappingURL=app.js.map" and "# sourceMappingURL=..." both go;
// the line itself stays, possibly empty.
func StripSourceMaps(s string) string {
	if !strings.Contains(s, "# sourceMappingURL=") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = sourceMapComment.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}
