package backend

import (
	"errors"
	"fmt"

	"github.com/alnah/go-mdrender/internal/errreport"
)

// ErrorCode classifies a failed resolution.
type ErrorCode string

// Resolution error codes.
const (
	CodeNone                ErrorCode = ""
	CodePathNotFound        ErrorCode = "PathNotFound"
	CodeImportError         ErrorCode = "ImportError"
	CodeMissingCapabilities ErrorCode = "MissingCapabilities"
	CodeConfigError         ErrorCode = "ConfigError"
	CodeUnknownError        ErrorCode = "UnknownError"
)

// Sentinel errors.
var (
	ErrEmptyName          = errors.New("backend name is empty")
	ErrNotConfigured      = errors.New("backend not configured")
	ErrNotRegistered      = errors.New("backend module not registered")
	ErrAlreadyRegistered  = errors.New("backend module already registered")
	ErrPathNotFound       = errors.New("backend search path not found")
	ErrVersionMismatch    = errors.New("backend version does not satisfy constraint")
	ErrInvalidConstraint  = errors.New("invalid backend version constraint")
	ErrInvalidVersion     = errors.New("invalid backend version")
	ErrNilModule          = errors.New("backend loader returned no module")
	ErrLoaderPanic        = errors.New("backend loader panicked")
	ErrIncomplete         = errors.New("backend capability set incomplete")
	ErrConfigSource       = errors.New("failed to read backend configuration")
	ErrInvalidBackendName = errors.New("backend config name does not match its key")
	ErrUnknown            = errors.New("unexpected backend resolution failure")
)

// Err returns the sentinel matching code, or nil for CodeNone.
func (c ErrorCode) Err() error {
	switch c {
	case CodeNone:
		return nil
	case CodePathNotFound:
		return ErrPathNotFound
	case CodeImportError:
		return ErrNotRegistered
	case CodeMissingCapabilities:
		return ErrIncomplete
	case CodeConfigError:
		return ErrNotConfigured
	default:
		return ErrUnknown
	}
}

// loadError carries the code a load step failed with. It implements the
// errreport categorizer hook.
type loadError struct {
	code ErrorCode
	err  error
}

func (e *loadError) Error() string   { return e.err.Error() }
func (e *loadError) Code() ErrorCode { return e.code }
func (e *loadError) Unwrap() error   { return e.err }

func (e *loadError) ErrorCategory() errreport.Category {
	if e.code == CodeConfigError {
		return errreport.CategoryConfig
	}
	return errreport.CategoryBackend
}

func wrapMessage(err error, msg string) error {
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}
