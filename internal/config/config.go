package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"

	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/fileutil"
	"github.com/alnah/go-mdrender/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxNameLength       = 64
	MaxThemeLength      = 64
	MaxPathLength       = 4096
	MaxURLLength        = 2048
	MaxConstraintLength = 100
	MaxCapabilities     = 32
)

// Defaults.
const (
	DefaultMaxContentLength = 1 << 20 // 1 MiB
	DefaultResolutionTTL    = "2h"
	DefaultRenderTTL        = "1h"
	DefaultMaxEntries       = 1000
	DefaultTheme            = "github"
	DefaultPrimaryBackend   = "primary"
	DefaultFallbackBackend  = "legacy"
)

// Config holds all configuration for rendering.
type Config struct {
	BackendBaseDir string                   `yaml:"backendBaseDir"` // Empty = $XDG_DATA_HOME/mdrender/backends
	Backends       map[string]BackendConfig `yaml:"backends"`
	Fallbacks      []string                 `yaml:"fallbacks"`
	Render         RenderConfig             `yaml:"render"`
	Cache          CacheConfig              `yaml:"cache"`
	Diagnostics    DiagnosticsConfig        `yaml:"diagnostics"`
	Assets         AssetsConfig             `yaml:"assets"`
	Output         OutputConfig             `yaml:"output"`
}

// BackendConfig describes one backend.
type BackendConfig struct {
	Module               string   `yaml:"module"`     // Registered module, defaults to the key
	SearchPath           string   `yaml:"searchPath"` // Relative to backendBaseDir
	Version              string   `yaml:"version"`    // Semver constraint, e.g. ">= 1.0, < 2"
	Priority             int      `yaml:"priority"`
	RequiredCapabilities []string `yaml:"requiredCapabilities"`
	FallbackEnabled      *bool    `yaml:"fallbackEnabled"` // Unset means enabled
}

// RenderConfig holds the default render options.
type RenderConfig struct {
	EnableZoom            bool   `yaml:"enableZoom"`
	EnableSyntaxHighlight bool   `yaml:"enableSyntaxHighlight"`
	Theme                 string `yaml:"theme"`
	MaxContentLength      int    `yaml:"maxContentLength"` // bytes
	CacheEnabled          bool   `yaml:"cacheEnabled"`
	FallbackToText        bool   `yaml:"fallbackToText"`
	UseDynamicBackend     bool   `yaml:"useDynamicBackend"`
	TOC                   bool   `yaml:"toc"`
	RewritePaths          bool   `yaml:"rewritePaths"`
}

// CacheConfig holds cache sizing and TTLs.
type CacheConfig struct {
	ResolutionTTL string `yaml:"resolutionTTL"` // Go duration, e.g. "2h"
	RenderTTL     string `yaml:"renderTTL"`     // Go duration, e.g. "1h"
	MaxEntries    int    `yaml:"maxEntries"`
}

// DiagnosticsConfig controls where resolution snapshots are exported.
type DiagnosticsConfig struct {
	ExportURL string `yaml:"exportURL"` // Empty = no export; file:// or mem:// URL
}

// AssetsConfig defines stylesheet loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = embedded styles only
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Empty = next to the source
}

// Validate checks field values. Called by LoadConfig, but available for
// callers who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("backendBaseDir", c.BackendBaseDir, MaxPathLength); err != nil {
		return err
	}
	if c.BackendBaseDir != "" && !filepath.IsAbs(c.BackendBaseDir) {
		return fmt.Errorf("%w: backendBaseDir must be absolute, got %q", ErrInvalidValue, c.BackendBaseDir)
	}

	for name, b := range c.Backends {
		if err := b.validate(name); err != nil {
			return err
		}
	}

	for i, name := range c.Fallbacks {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: fallbacks[%d] is empty", ErrInvalidValue, i)
		}
		if err := validateFieldLength(fmt.Sprintf("fallbacks[%d]", i), name, MaxNameLength); err != nil {
			return err
		}
	}

	if err := validateFieldLength("render.theme", c.Render.Theme, MaxThemeLength); err != nil {
		return err
	}
	if c.Render.MaxContentLength <= 0 {
		return fmt.Errorf("%w: render.maxContentLength must be positive, got %d", ErrInvalidValue, c.Render.MaxContentLength)
	}

	if _, err := parseTTL("cache.resolutionTTL", c.Cache.ResolutionTTL); err != nil {
		return err
	}
	if _, err := parseTTL("cache.renderTTL", c.Cache.RenderTTL); err != nil {
		return err
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: cache.maxEntries must not be negative, got %d", ErrInvalidValue, c.Cache.MaxEntries)
	}

	if err := validateFieldLength("diagnostics.exportURL", c.Diagnostics.ExportURL, MaxURLLength); err != nil {
		return err
	}
	if u := c.Diagnostics.ExportURL; u != "" && !strings.Contains(u, "://") {
		return fmt.Errorf("%w: diagnostics.exportURL must be a URL, got %q", ErrInvalidValue, u)
	}

	if err := validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength); err != nil {
		return err
	}
	return validateFieldLength("output.defaultDir", c.Output.DefaultDir, MaxPathLength)
}

func (b BackendConfig) validate(name string) error {
	field := "backends." + name
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: backend name is empty", ErrInvalidValue)
	}
	if err := validateFieldLength(field, name, MaxNameLength); err != nil {
		return err
	}
	if err := validateFieldLength(field+".module", b.Module, MaxNameLength); err != nil {
		return err
	}
	if err := validateFieldLength(field+".searchPath", b.SearchPath, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength(field+".version", b.Version, MaxConstraintLength); err != nil {
		return err
	}
	if b.Version != "" {
		if _, err := semver.NewConstraint(b.Version); err != nil {
			return fmt.Errorf("%w: %s.version %q: %v", ErrInvalidValue, field, b.Version, err)
		}
	}
	if len(b.RequiredCapabilities) > MaxCapabilities {
		return fmt.Errorf("%w: %s.requiredCapabilities has %d entries, max %d",
			ErrInvalidValue, field, len(b.RequiredCapabilities), MaxCapabilities)
	}
	for i, capName := range b.RequiredCapabilities {
		if strings.TrimSpace(capName) == "" {
			return fmt.Errorf("%w: %s.requiredCapabilities[%d] is empty", ErrInvalidValue, field, i)
		}
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

func parseTTL(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, field)
	}
	return d, nil
}

// ResolutionTTL returns the parsed resolution TTL, or the default.
func (c *Config) ResolutionTTL() time.Duration {
	return ttlOr(c.Cache.ResolutionTTL, DefaultResolutionTTL)
}

// RenderTTL returns the parsed render TTL, or the default.
func (c *Config) RenderTTL() time.Duration {
	return ttlOr(c.Cache.RenderTTL, DefaultRenderTTL)
}

func ttlOr(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// BackendConfigs converts the backends section for the resolver.
func (c *Config) BackendConfigs() map[string]backend.Config {
	out := make(map[string]backend.Config, len(c.Backends))
	for name, b := range c.Backends {
		out[name] = backend.Config{
			Name:                 name,
			Module:               b.Module,
			SearchPath:           b.SearchPath,
			Version:              b.Version,
			Priority:             b.Priority,
			RequiredCapabilities: append([]string(nil), b.RequiredCapabilities...),
			FallbackEnabled:      b.FallbackEnabled,
		}
	}
	return out
}

// DefaultConfig returns the built-in configuration: the richmd backend as
// the primary identity with legacy as fallback, every render tier enabled.
func DefaultConfig() *Config {
	return &Config{
		Backends: map[string]BackendConfig{
			DefaultPrimaryBackend: {
				Module:               "richmd",
				SearchPath:           "richmd",
				Priority:             100,
				RequiredCapabilities: []string{backend.CapRender, backend.CapRenderZoom},
				FallbackEnabled:      backend.Bool(true),
			},
			DefaultFallbackBackend: {
				SearchPath: "legacy",
				Priority:   10,
			},
		},
		Fallbacks: []string{DefaultFallbackBackend},
		Render: RenderConfig{
			EnableSyntaxHighlight: true,
			Theme:                 DefaultTheme,
			MaxContentLength:      DefaultMaxContentLength,
			CacheEnabled:          true,
			FallbackToText:        true,
			UseDynamicBackend:     true,
			TOC:                   true,
		},
		Cache: CacheConfig{
			ResolutionTTL: DefaultResolutionTTL,
			RenderTTL:     DefaultRenderTTL,
			MaxEntries:    DefaultMaxEntries,
		},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Missing keys keep their DefaultConfig values, except that a backends
// section replaces the default backends entirely.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	path, err := ResolvePath(nameOrPath)
	if err != nil {
		return nil, err
	}
	return loadFile(path)
}

// ResolvePath returns the file LoadConfig would read.
func ResolvePath(nameOrPath string) (string, error) {
	if nameOrPath == "" {
		return "", ErrEmptyConfigName
	}
	if fileutil.IsFilePath(nameOrPath) {
		return nameOrPath, nil
	}
	return resolveConfigPath(nameOrPath)
}

func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var raw struct {
		Backends map[string]BackendConfig `yaml:"backends"`
	}
	if err := yamlutil.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	cfg := DefaultConfig()
	if raw.Backends != nil {
		cfg.Backends = nil
	}
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, $XDG_CONFIG_HOME/mdrender/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	for _, ext := range extensions {
		userPath := filepath.Join(xdg.ConfigHome, "mdrender", name+ext)
		if fileutil.FileExists(userPath) {
			return userPath, nil
		}
		triedPaths = append(triedPaths, userPath)
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// FileSource is a backend.ConfigSource that re-reads a config file on every
// call, so Resolver.Reload picks up edits.
type FileSource struct {
	path string
}

// NewFileSource resolves nameOrPath once and returns a source for it.
func NewFileSource(nameOrPath string) (*FileSource, error) {
	path, err := ResolvePath(nameOrPath)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: path}, nil
}

// Path returns the config file path.
func (s *FileSource) Path() string {
	return s.path
}

// Backends implements backend.ConfigSource.
func (s *FileSource) Backends() (map[string]backend.Config, error) {
	cfg, err := loadFile(s.path)
	if err != nil {
		return nil, err
	}
	return cfg.BackendConfigs(), nil
}

// Compile-time interface check.
var _ backend.ConfigSource = (*FileSource)(nil)
