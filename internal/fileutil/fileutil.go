// Package fileutil provides file and path utility functions over afero filesystems.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Sentinel errors for file utility operations.
var (
	ErrNilFilesystem = errors.New("filesystem cannot be nil")
	ErrEmptyPath     = errors.New("path cannot be empty")
)

// FileExists returns true if the path exists and is a regular file.
func FileExists(fs afero.Fs, path string) bool {
	if fs == nil || path == "" {
		return false
	}
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsPathUnderDir checks if path is dir itself or below it.
// Both arguments are cleaned first, so "../" segments cannot escape dir.
func IsPathUnderDir(path, dir string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(dir)

	// Ensure dir ends with separator for correct prefix matching
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}

	return strings.HasPrefix(cleanPath+string(filepath.Separator), cleanDir)
}

// WriteFileAtomic replaces path with data by writing a sibling temp file and
// renaming it over the original. The original file mode is preserved when the
// file already exists; otherwise perm is used.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if fs == nil {
		return ErrNilFilesystem
	}
	if path == "" {
		return ErrEmptyPath
	}

	if info, err := fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmpFile, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	cleanup := func() { _ = fs.Remove(tmpPath) }

	if _, writeErr := tmpFile.Write(data); writeErr != nil {
		_ = tmpFile.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", writeErr)
	}

	if closeErr := tmpFile.Close(); closeErr != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := fs.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "inline" -> false (name)
//   - "./inline.yaml" -> true (relative path)
//   - "/etc/htmlinline.yaml" -> true (absolute)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}
