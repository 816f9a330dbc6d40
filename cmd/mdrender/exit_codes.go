package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-mdrender"
	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/config"
)

// Exit codes for the mdrender CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Everything rendered
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitRender  = 4 // Rendering or backend errors
)

// ErrUsage marks command-line mistakes.
var ErrUsage = errors.New("invalid usage")

// usageError wraps a flag parse error. ErrHelp passes through untouched.
func usageError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}

	// Render errors (exit 4)
	if errors.Is(err, mdrender.ErrAllRenderersFailed) ||
		errors.Is(err, mdrender.ErrContentTooLarge) ||
		errors.Is(err, mdrender.ErrFileTooLarge) ||
		errors.Is(err, mdrender.ErrEncoding) ||
		errors.Is(err, mdrender.ErrEmptyContent) ||
		errors.Is(err, backend.ErrPathNotFound) ||
		errors.Is(err, backend.ErrNotRegistered) ||
		errors.Is(err, backend.ErrIncomplete) ||
		errors.Is(err, backend.ErrNotConfigured) ||
		errors.Is(err, backend.ErrUnknown) {
		return ExitRender
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, mdrender.ErrFileNotFound) ||
		errors.Is(err, mdrender.ErrNotAFile) ||
		errors.Is(err, mdrender.ErrRead) ||
		errors.Is(err, mdrender.ErrInvalidPath) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrWriteHTML) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrUnknownTheme) {
		return ExitUsage
	}

	return ExitGeneral
}
