package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	htmlinline "github.com/alnah/go-htmlinline"
)

// Sentinel errors for document discovery.
var (
	ErrNoInput     = errors.New("no input specified")
	ErrNoDocuments = errors.New("no .html, .htm or .css files found")
)

// document is one file to transform. Relative references resolve against
// BaseDir, the directory given on the command line.
type document struct {
	Path    string
	BaseDir string
}

// resolveRoots determines the inputs from args or config.
func resolveRoots(args []string, inputDir string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if inputDir != "" {
		return []string{inputDir}, nil
	}
	return nil, ErrNoInput
}

// discoverDocuments walks each root for transformable documents. A root may
// also name a single document. Hidden directories are skipped.
func discoverDocuments(fs afero.Fs, roots []string) ([]document, error) {
	var docs []document
	for _, root := range roots {
		found, err := discoverRoot(fs, root)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, strings.Join(roots, ", "))
	}
	return docs, nil
}

func discoverRoot(fs afero.Fs, root string) ([]document, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !htmlinline.IsDocument(root) {
			return nil, fmt.Errorf("%w: %s", htmlinline.ErrUnsupportedDocument, root)
		}
		return []document{{Path: root, BaseDir: filepath.Dir(root)}}, nil
	}

	var docs []document
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if info.IsDir() {
			if path != root && isHidden(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if htmlinline.IsDocument(path) {
			docs = append(docs, document{Path: path, BaseDir: root})
		}
		return nil
	})
	return docs, err
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}
