// Package source resolves a locator to Markdown content: it validates the
// path, enforces a size limit, reads the file, and decodes it to UTF-8.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/alnah/go-mdrender/internal/fileutil"
)

// ErrorType classifies a failed resolution.
type ErrorType string

// Resolution error types.
const (
	InvalidPath   ErrorType = "InvalidPath"
	FileNotFound  ErrorType = "FileNotFound"
	NotAFile      ErrorType = "NotAFile"
	FileTooLarge  ErrorType = "FileTooLarge"
	ReadError     ErrorType = "ReadError"
	EncodingError ErrorType = "EncodingError"
)

// Sentinel errors, one per ErrorType.
var (
	ErrInvalidPath  = errors.New("invalid source path")
	ErrFileNotFound = errors.New("source file not found")
	ErrNotAFile     = errors.New("source is not a regular file")
	ErrFileTooLarge = errors.New("source file too large")
	ErrRead         = errors.New("failed to read source")
	ErrEncoding     = errors.New("failed to decode source")
)

var sentinels = map[ErrorType]error{
	InvalidPath:   ErrInvalidPath,
	FileNotFound:  ErrFileNotFound,
	NotAFile:      ErrNotAFile,
	FileTooLarge:  ErrFileTooLarge,
	ReadError:     ErrRead,
	EncodingError: ErrEncoding,
}

// Err returns the sentinel for t.
func (t ErrorType) Err() error {
	return sentinels[t]
}

// Options control a resolution.
type Options struct {
	// MaxSize rejects files larger than this many bytes. Zero means no limit.
	MaxSize int64
	// ReadContent reads the file. Without it only metadata is resolved.
	ReadContent bool
	// DetectEncoding decodes non-UTF-8 content to UTF-8.
	DetectEncoding bool
}

// FileInfo is the metadata of a resolved file.
type FileInfo struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Success      bool
	Content      string
	FilePath     string
	Info         FileInfo
	Encoding     string
	ErrorType    ErrorType
	ErrorMessage string
}

// Err returns the sentinel error wrapped with the message, or nil.
func (r *Resolution) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", r.ErrorType.Err(), r.ErrorMessage)
}

// Resolver resolves locators relative to a base directory.
type Resolver struct {
	baseDir string
}

// NewResolver creates a Resolver. Relative locators resolve against
// baseDir, which defaults to the working directory at construction.
func NewResolver(baseDir string) (*Resolver, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		baseDir = wd
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return &Resolver{baseDir: abs}, nil
}

// Resolve turns locator into content. It never panics; failures are
// reported through the Resolution.
func (r *Resolver) Resolve(locator string, opts Options) *Resolution {
	if fileutil.IsURL(locator) {
		return failure(locator, InvalidPath, "remote locators are not supported: "+locator)
	}
	path, err := fileutil.ResolveAgainst(r.baseDir, locator)
	if err != nil {
		return failure(locator, InvalidPath, err.Error())
	}

	res := &Resolution{FilePath: path}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure(path, FileNotFound, path)
		}
		return failure(path, ReadError, err.Error())
	}
	if !info.Mode().IsRegular() {
		return failure(path, NotAFile, path)
	}
	res.Info = FileInfo{Size: info.Size(), ModTime: info.ModTime()}

	if opts.MaxSize > 0 && info.Size() > opts.MaxSize {
		f := failure(path, FileTooLarge, fmt.Sprintf("%s is %d bytes, limit %d", path, info.Size(), opts.MaxSize))
		f.Info = res.Info
		return f
	}

	if !opts.ReadContent {
		res.Success = true
		return res
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path validated above
	if err != nil {
		return failure(path, ReadError, err.Error())
	}

	content, enc, err := decode(data, opts.DetectEncoding)
	if err != nil {
		return failure(path, EncodingError, err.Error())
	}

	res.Success = true
	res.Content = content
	res.Encoding = enc
	return res
}

// decode returns data as UTF-8 and the name of the source encoding.
func decode(data []byte, detect bool) (string, string, error) {
	if !detect {
		return string(data), "utf-8", nil
	}

	// A BOM is authoritative; otherwise valid UTF-8 wins before sniffing.
	if enc, name := bomEncoding(data); enc != nil {
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", name, fmt.Errorf("decoding %s: %w", name, err)
		}
		return string(out), name, nil
	}
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", name, fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(out), name, nil
}

func bomEncoding(data []byte) (encoding.Encoding, string) {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return unicode.UTF8BOM, "utf-8"
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le"
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be"
	default:
		return nil, ""
	}
}

func failure(path string, t ErrorType, msg string) *Resolution {
	return &Resolution{FilePath: path, ErrorType: t, ErrorMessage: msg}
}
