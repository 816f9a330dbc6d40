package mdrender

import (
	"fmt"
	"time"

	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/config"
)

// Tier names the renderer that produced a result.
type Tier string

// Renderer tiers, in cascade order. TierErrorHandler marks results no
// renderer produced.
const (
	TierPrimaryBackend   Tier = "primary_backend"
	TierSecondaryLibrary Tier = "secondary_library"
	TierTextFallback     Tier = "text_fallback"
	TierErrorHandler     Tier = "error_handler"
)

// Backend resolution types.
type (
	BackendConfig        = backend.Config
	ConfigSource         = backend.ConfigSource
	ResolutionDescriptor = backend.Descriptor
	ResolutionSnapshot   = backend.Snapshot
)

// RenderOptions control one render. Pipeline defaults come from
// DefaultRenderOptions or WithDefaults; per-call Overrides win.
type RenderOptions struct {
	EnableZoom            bool   `json:"enableZoom" yaml:"enableZoom"`
	EnableSyntaxHighlight bool   `json:"enableSyntaxHighlight" yaml:"enableSyntaxHighlight"`
	Theme                 string `json:"theme" yaml:"theme"`
	MaxContentLength      int    `json:"maxContentLength" yaml:"maxContentLength"` // bytes
	CacheEnabled          bool   `json:"cacheEnabled" yaml:"cacheEnabled"`
	FallbackToText        bool   `json:"fallbackToText" yaml:"fallbackToText"`
	UseDynamicBackend     bool   `json:"useDynamicBackend" yaml:"useDynamicBackend"`
}

// DefaultRenderOptions returns the built-in render defaults.
func DefaultRenderOptions() RenderOptions {
	return RenderOptionsFromConfig(config.DefaultConfig().Render)
}

// RenderOptionsFromConfig maps the render section of a config file.
func RenderOptionsFromConfig(rc config.RenderConfig) RenderOptions {
	return RenderOptions{
		EnableZoom:            rc.EnableZoom,
		EnableSyntaxHighlight: rc.EnableSyntaxHighlight,
		Theme:                 rc.Theme,
		MaxContentLength:      rc.MaxContentLength,
		CacheEnabled:          rc.CacheEnabled,
		FallbackToText:        rc.FallbackToText,
		UseDynamicBackend:     rc.UseDynamicBackend,
	}
}

// Overrides is a partial RenderOptions. Nil fields keep the default.
type Overrides struct {
	EnableZoom            *bool
	EnableSyntaxHighlight *bool
	Theme                 *string
	MaxContentLength      *int
	CacheEnabled          *bool
	FallbackToText        *bool
	UseDynamicBackend     *bool
}

// Bool returns a pointer to v, for Overrides literals.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for Overrides literals.
func String(v string) *string { return &v }

// Int returns a pointer to v, for Overrides literals.
func Int(v int) *int { return &v }

// merge applies o over base. A nil o returns base unchanged.
func (base RenderOptions) merge(o *Overrides) RenderOptions {
	if o == nil {
		return base
	}
	out := base
	if o.EnableZoom != nil {
		out.EnableZoom = *o.EnableZoom
	}
	if o.EnableSyntaxHighlight != nil {
		out.EnableSyntaxHighlight = *o.EnableSyntaxHighlight
	}
	if o.Theme != nil {
		out.Theme = *o.Theme
	}
	if o.MaxContentLength != nil {
		out.MaxContentLength = *o.MaxContentLength
	}
	if o.CacheEnabled != nil {
		out.CacheEnabled = *o.CacheEnabled
	}
	if o.FallbackToText != nil {
		out.FallbackToText = *o.FallbackToText
	}
	if o.UseDynamicBackend != nil {
		out.UseDynamicBackend = *o.UseDynamicBackend
	}
	return out
}

// SourceInfo describes the file behind a RenderSource result.
type SourceInfo struct {
	Path     string    `json:"path"`
	Encoding string    `json:"encoding"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
}

// RenderResult is the outcome of one render. Every call returns a fresh
// value; mutating it never affects the render cache.
type RenderResult struct {
	Success      bool          `json:"success"`
	HTML         string        `json:"html,omitempty"`
	Tier         Tier          `json:"rendererTier"`
	OptionsUsed  RenderOptions `json:"optionsUsed"`
	Cached       bool          `json:"cached"`
	RenderTime   time.Duration `json:"renderTime"`
	ErrorType    ErrorType     `json:"errorType,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Source       *SourceInfo   `json:"source,omitempty"`
}

// RenderTimeMs returns RenderTime in fractional milliseconds.
func (r *RenderResult) RenderTimeMs() float64 {
	return float64(r.RenderTime) / float64(time.Millisecond)
}

// Err returns the sentinel error for ErrorType wrapped with the message,
// or nil on success.
func (r *RenderResult) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", r.ErrorType.Err(), r.ErrorMessage)
}

// Clone returns a deep copy.
func (r *RenderResult) Clone() *RenderResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Source != nil {
		src := *r.Source
		out.Source = &src
	}
	return &out
}

// SizeBytes approximates the memory held by r, for cache accounting.
func (r *RenderResult) SizeBytes() int {
	return len(r.HTML) + len(r.ErrorMessage) + len(r.OptionsUsed.Theme) + 160
}
