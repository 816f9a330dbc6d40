package mdrender

import (
	"errors"

	"github.com/alnah/go-mdrender/internal/source"
)

// Sentinel errors for pipeline operations.
var (
	ErrEmptyContent       = errors.New("content is nil")
	ErrContentTooLarge    = errors.New("content exceeds maximum length")
	ErrAllRenderersFailed = errors.New("all renderers failed")

	// Source resolution errors, surfaced by RenderSource.
	ErrInvalidPath  = source.ErrInvalidPath
	ErrFileNotFound = source.ErrFileNotFound
	ErrNotAFile     = source.ErrNotAFile
	ErrFileTooLarge = source.ErrFileTooLarge
	ErrRead         = source.ErrRead
	ErrEncoding     = source.ErrEncoding
)

// ErrorType classifies a failed RenderResult.
type ErrorType string

// Pipeline error types. Source error types share their names with the
// content resolver's.
const (
	EmptyContent       ErrorType = "EmptyContent"
	ContentTooLarge    ErrorType = "ContentTooLarge"
	AllRenderersFailed ErrorType = "AllRenderersFailed"

	InvalidPath   = ErrorType(source.InvalidPath)
	FileNotFound  = ErrorType(source.FileNotFound)
	NotAFile      = ErrorType(source.NotAFile)
	FileTooLarge  = ErrorType(source.FileTooLarge)
	ReadError     = ErrorType(source.ReadError)
	EncodingError = ErrorType(source.EncodingError)
)

// Err returns the sentinel for t, or nil for an unknown type.
func (t ErrorType) Err() error {
	switch t {
	case EmptyContent:
		return ErrEmptyContent
	case ContentTooLarge:
		return ErrContentTooLarge
	case AllRenderersFailed:
		return ErrAllRenderersFailed
	default:
		return source.ErrorType(t).Err()
	}
}
