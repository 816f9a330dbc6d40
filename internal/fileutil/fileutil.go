// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for path operations.
var (
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrNullByte    = errors.New("path contains null byte")
	ErrRelativeDir = errors.New("base directory must be absolute")
)

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "primary" -> false (name)
//   - "./backends/rich" -> true (relative path)
//   - "/opt/mdrender/backends" -> true (absolute)
//   - "C:\backends" -> true (Windows)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// IsURL returns true if the string looks like an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ValidatePath rejects empty paths and paths carrying a null byte.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrNullByte
	}
	return nil
}

// ResolveAgainst returns path as an absolute, cleaned path.
// Relative paths are joined to base, never to the working directory.
func ResolveAgainst(base, path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if !filepath.IsAbs(base) {
		return "", fmt.Errorf("%w: %q", ErrRelativeDir, base)
	}
	return filepath.Join(base, path), nil
}
