// Package diag exports diagnostic snapshots as JSON documents to any
// location supported by github.com/viant/afs (file://, mem://, and cloud
// storage schemes).
package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Sentinel errors.
var (
	ErrEmptyName = errors.New("snapshot name is empty")
	ErrNotFound  = errors.New("snapshot not found")
)

// Sink receives diagnostic documents.
type Sink interface {
	Write(ctx context.Context, name string, v any) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Write(context.Context, string, any) error { return nil }

// Store writes snapshots as <baseURL>/<name>.json.
type Store struct {
	fs      afs.Service
	baseURL string
}

// NewStore creates a Store rooted at baseURL.
func NewStore(baseURL string) *Store {
	return &Store{fs: afs.New(), baseURL: strings.TrimRight(baseURL, "/")}
}

// URL returns the location used for name.
func (s *Store) URL(name string) string {
	return url.Join(s.baseURL, sanitize(name)+".json")
}

// Write serializes v and uploads it, replacing any previous snapshot.
func (s *Store) Write(ctx context.Context, name string, v any) error {
	if name == "" {
		return ErrEmptyName
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %q: %w", name, err)
	}
	if err := s.fs.Upload(ctx, s.URL(name), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("uploading snapshot %q: %w", name, err)
	}
	return nil
}

// Read downloads the snapshot stored under name into v.
func (s *Store) Read(ctx context.Context, name string, v any) error {
	if name == "" {
		return ErrEmptyName
	}
	URL := s.URL(name)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("checking snapshot %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("downloading snapshot %q: %w", name, err)
	}
	return json.Unmarshal(data, v)
}

// sanitize keeps snapshot names flat.
func sanitize(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
}
