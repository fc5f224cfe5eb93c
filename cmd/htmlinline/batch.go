package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"

	htmlinline "github.com/alnah/go-htmlinline"
)

// ErrPartialBatch is returned when some documents failed.
var ErrPartialBatch = errors.New("some documents failed")

// Transformer is the interface for the inlining service.
type Transformer interface {
	TransformFile(ctx context.Context, baseDir, path string) (htmlinline.FileResult, error)
	PreviewFile(ctx context.Context, baseDir, path string) (htmlinline.FileResult, error)
}

// Compile-time interface implementation check.
var _ Transformer = (*htmlinline.Inliner)(nil)

// InlineResult holds the outcome of a single document.
type InlineResult struct {
	Doc      document
	File     htmlinline.FileResult
	Err      error
	Duration time.Duration
}

// inlineBatch processes documents concurrently with a fixed number of
// workers sharing one Transformer, so resources are fetched once per run.
func inlineBatch(ctx context.Context, tr Transformer, docs []document, workers int, dryRun bool) []InlineResult {
	if len(docs) == 0 {
		return nil
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]InlineResult, len(docs))
	var wg sync.WaitGroup
	jobs := make(chan int, len(docs))

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = InlineResult{Doc: docs[idx], Err: ctx.Err()}
					continue
				}
				results[idx] = inlineDocument(ctx, tr, docs[idx], dryRun)
			}
		}()
	}

	for i := range docs {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// inlineDocument processes a single document and returns the result.
func inlineDocument(ctx context.Context, tr Transformer, doc document, dryRun bool) InlineResult {
	start := time.Now()
	transform := tr.TransformFile
	if dryRun {
		transform = tr.PreviewFile
	}
	file, err := transform(ctx, doc.BaseDir, doc.Path)
	return InlineResult{
		Doc:      doc,
		File:     file,
		Err:      err,
		Duration: time.Since(start),
	}
}

// ResultSummary counts documents by outcome.
type ResultSummary struct {
	Changed   int
	Unchanged int
	Failed    int
}

// countResults tallies outcomes.
func countResults(results []InlineResult) ResultSummary {
	var summary ResultSummary
	for _, r := range results {
		switch {
		case r.Err != nil:
			summary.Failed++
		case r.File.Changed:
			summary.Changed++
		default:
			summary.Unchanged++
		}
	}
	return summary
}

// printOptions controls result output.
type printOptions struct {
	quiet   bool
	verbose bool
	dryRun  bool
}

// nameWidth is the column the document names are right-aligned to.
const nameWidth = 30

// printResults outputs one line per grown document (every document with
// verbose) and a summary. Returns the number of failures.
func printResults(results []InlineResult, opts printOptions, env *Environment) int {
	summary := countResults(results)
	out := termenv.NewOutput(env.Stdout)
	errOut := termenv.NewOutput(env.Stderr)

	for _, r := range results {
		name := displayName(r.Doc)
		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "%s %s: %s\n",
				errOut.String("FAILED").Foreground(errOut.Color("1")), r.Doc.Path, formatError(r.Err))
			continue
		}
		if opts.quiet {
			continue
		}

		growth := r.File.Growth()
		switch {
		case opts.verbose:
			fmt.Fprintf(env.Stdout, "%*s %s (%v)\n", nameWidth, name,
				describeGrowth(out, r.File), r.Duration.Round(time.Millisecond))
		case r.File.Changed && growth > 0:
			fmt.Fprintf(env.Stdout, "%*s %s\n", nameWidth, name, describeGrowth(out, r.File))
		}
	}

	if !opts.quiet && len(results) > 1 {
		verb := "changed"
		if opts.dryRun {
			verb = "would change"
		}
		fmt.Fprintf(env.Stdout, "\n%d %s, %d unchanged, %d failed\n",
			summary.Changed, verb, summary.Unchanged, summary.Failed)
	}

	return summary.Failed
}

// describeGrowth renders "Increased by 12.3KB", colored by magnitude.
func describeGrowth(out *termenv.Output, r htmlinline.FileResult) string {
	growth := r.Growth()
	switch {
	case !r.Changed:
		return "Unchanged"
	case growth < 0:
		return out.String("Decreased by").Foreground(out.Color("3")).String() + " " + formatSize(-growth)
	}

	color := "2" // green
	switch {
	case growth > 1024*1024:
		color = "1" // red
	case growth > 1024:
		color = "3" // yellow
	}
	return out.String("Increased by").Foreground(out.Color("3")).String() + " " +
		out.String(formatSize(growth)).Foreground(out.Color(color)).String()
}

// formatSize renders n bytes as B, KB or MB with one decimal.
func formatSize(n int) string {
	switch {
	case n > 1024*1024:
		return fmt.Sprintf("%.1fMB", float64(n)/1024/1024)
	case n > 1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// displayName is the document path relative to its root, cut to the last
// nameWidth characters.
func displayName(doc document) string {
	name := doc.Path
	if rel, err := filepath.Rel(doc.BaseDir, doc.Path); err == nil && !strings.HasPrefix(rel, "..") {
		name = rel
	}
	if len(name) > nameWidth {
		name = name[len(name)-nameWidth:]
	}
	return name
}
