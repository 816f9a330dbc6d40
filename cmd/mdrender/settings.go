package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/alnah/go-mdrender"
	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/config"
	"github.com/alnah/go-mdrender/internal/diag"
	"github.com/alnah/go-mdrender/internal/fileutil"
	"github.com/alnah/go-mdrender/internal/hints"
	"github.com/alnah/go-mdrender/internal/pipeline"
)

// ErrUnknownTheme is returned for a --theme that neither chroma nor the
// assets directory provides.
var ErrUnknownTheme = errors.New("unknown theme")

// settings is the resolved configuration a command runs with.
type settings struct {
	cfg        *config.Config
	configPath string // empty when running on built-in defaults
}

// loadSettings loads the config named by flag or env, then applies env
// and flag overrides and validates the result.
func loadSettings(configFlag string, rf *renderOptionFlags, env *envConfig) (*settings, error) {
	s := &settings{cfg: config.DefaultConfig()}

	if name := resolveConfigName(configFlag, env); name != "" {
		path, err := config.ResolvePath(name)
		if err != nil {
			return nil, configError(name, err)
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, configError(name, err)
		}
		s.cfg, s.configPath = cfg, path
	}

	if err := applyEnvConfig(env, s.cfg); err != nil {
		return nil, err
	}
	if rf != nil {
		if err := mergeRenderFlags(rf, s.cfg); err != nil {
			return nil, err
		}
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateTheme(s.cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func configError(name string, err error) error {
	err = fmt.Errorf("loading config: %w", err)
	if errors.Is(err, config.ErrConfigNotFound) && !fileutil.IsFilePath(name) {
		return withHint(err, hints.ForConfigNotFound([]string{
			filepath.Join(xdg.ConfigHome, "mdrender", name+".yaml"),
		}))
	}
	return err
}

// mergeRenderFlags applies CLI render flags over cfg (CLI wins).
func mergeRenderFlags(f *renderOptionFlags, cfg *config.Config) error {
	if f.maxSize < 0 {
		return fmt.Errorf("%w: --max-size %d (must be >= 0, 0 means config)", ErrUsage, f.maxSize)
	}
	if f.maxSize > 0 {
		cfg.Render.MaxContentLength = f.maxSize
	}
	if f.theme != "" {
		cfg.Render.Theme = f.theme
	}
	if f.zoom {
		cfg.Render.EnableZoom = true
	}
	if f.noHighlight {
		cfg.Render.EnableSyntaxHighlight = false
	}
	if f.noCache {
		cfg.Render.CacheEnabled = false
	}
	if f.noTextFallback {
		cfg.Render.FallbackToText = false
	}
	if f.noBackend {
		cfg.Render.UseDynamicBackend = false
	}
	return nil
}

// validateTheme accepts chroma styles and stylesheets under assets.basePath.
func validateTheme(cfg *config.Config) error {
	theme := cfg.Render.Theme
	if theme == "" || pipeline.IsTheme(theme) {
		return nil
	}
	if cfg.Assets.BasePath != "" &&
		fileutil.FileExists(filepath.Join(cfg.Assets.BasePath, "styles", theme+".css")) {
		return nil
	}
	return withHint(fmt.Errorf("%w: %q", ErrUnknownTheme, theme), hints.ForThemeNotFound(pipeline.Themes()))
}

// pipelineOptions maps s onto pipeline options. Backend configs come from
// the config file when there is one, so Reconfigure picks up edits.
func pipelineOptions(s *settings) ([]mdrender.Option, error) {
	cfg := s.cfg

	var src mdrender.ConfigSource = backend.StaticSource(cfg.BackendConfigs())
	if s.configPath != "" {
		fs, err := config.NewFileSource(s.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		src = fs
	}

	opts := []mdrender.Option{
		mdrender.WithDefaults(mdrender.RenderOptionsFromConfig(cfg.Render)),
		mdrender.WithBackendSource(src),
		mdrender.WithFallbacks(cfg.Fallbacks...),
		mdrender.WithMaxEntries(cfg.Cache.MaxEntries),
		mdrender.WithTOC(cfg.Render.TOC),
		mdrender.WithPathRewrite(cfg.Render.RewritePaths),
	}
	if ttl := cfg.RenderTTL(); ttl > 0 {
		opts = append(opts, mdrender.WithRenderTTL(ttl))
	}
	if ttl := cfg.ResolutionTTL(); ttl > 0 {
		opts = append(opts, mdrender.WithResolutionTTL(ttl))
	}
	if cfg.BackendBaseDir != "" {
		opts = append(opts, mdrender.WithBackendBaseDir(cfg.BackendBaseDir))
	}
	if cfg.Assets.BasePath != "" {
		opts = append(opts, mdrender.WithStyles(cfg.Assets.BasePath))
	}
	if cfg.Diagnostics.ExportURL != "" {
		opts = append(opts, mdrender.WithDiagnostics(diag.NewStore(cfg.Diagnostics.ExportURL)))
	}
	return opts, nil
}

// newPipeline builds a pipeline from s plus command-specific options.
func newPipeline(s *settings, extra ...mdrender.Option) (*mdrender.Pipeline, error) {
	opts, err := pipelineOptions(s)
	if err != nil {
		return nil, err
	}
	p, err := mdrender.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	return p, nil
}

// withHint appends hint to err's message, keeping err in the chain.
func withHint(err error, hint string) error {
	if err == nil || hint == "" {
		return err
	}
	return fmt.Errorf("%w%s", err, hint)
}
