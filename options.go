package mdrender

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/cache"
	"github.com/alnah/go-mdrender/internal/diag"
	"github.com/alnah/go-mdrender/internal/errreport"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// pipelineConfig holds construction-time settings. Collaborators the
// caller did not inject are built from it in New.
type pipelineConfig struct {
	backendName    string
	fallbacks      []string
	source         backend.ConfigSource
	registry       *backend.Registry[backend.Entry]
	baseDir        string
	sink           diag.Sink
	resolutionTTL  time.Duration
	renderTTL      time.Duration
	maxEntries     int
	stylesPath     string
	toc            bool
	rewritePaths   bool
	sourceDir      string
	watch          bool
	prerenderLimit int
}

// Defaults for New.
const (
	DefaultBackendName = "primary"
	DefaultRenderTTL   = time.Hour
)

// DefaultFallbacks are tried when the primary backend cannot be used.
var DefaultFallbacks = []string{"legacy"}

// SecondaryRenderer is the always-available renderer behind the primary
// backend.
type SecondaryRenderer interface {
	RenderHTML(ctx context.Context, content string, opts RenderOptions) (string, error)
}

// SecondaryFunc adapts a function to SecondaryRenderer.
type SecondaryFunc func(ctx context.Context, content string, opts RenderOptions) (string, error)

// RenderHTML implements SecondaryRenderer.
func (f SecondaryFunc) RenderHTML(ctx context.Context, content string, opts RenderOptions) (string, error) {
	return f(ctx, content, opts)
}

// WithDefaults sets the options every render starts from.
func WithDefaults(opts RenderOptions) Option {
	return func(p *Pipeline) {
		p.defaults = opts
	}
}

// WithBackendName sets the backend identity resolved for tier 1.
// Panics if name is empty (programmer error).
func WithBackendName(name string) Option {
	if name == "" {
		panic("mdrender: WithBackendName name must not be empty")
	}
	return func(p *Pipeline) {
		p.cfg.backendName = name
	}
}

// WithFallbacks sets the backends tried when the primary cannot load.
func WithFallbacks(names ...string) Option {
	return func(p *Pipeline) {
		p.cfg.fallbacks = append([]string(nil), names...)
	}
}

// WithBackendSource sets where backend configs are read from.
func WithBackendSource(src ConfigSource) Option {
	return func(p *Pipeline) {
		p.cfg.source = src
	}
}

// WithBackendBaseDir sets the directory relative search paths resolve against.
func WithBackendBaseDir(dir string) Option {
	return func(p *Pipeline) {
		p.cfg.baseDir = dir
	}
}

// WithRegistry sets the backend module registry. Defaults to the
// process-wide registry backend packages register into.
func WithRegistry(reg *backend.Registry[backend.Entry]) Option {
	return func(p *Pipeline) {
		p.cfg.registry = reg
	}
}

// WithResolver injects a ready resolver. Backend source, base dir,
// registry, diagnostics and resolution TTL options are then ignored.
func WithResolver(r *backend.Resolver) Option {
	return func(p *Pipeline) {
		p.resolver = r
	}
}

// WithDiagnostics sets where resolution snapshots are exported.
func WithDiagnostics(sink diag.Sink) Option {
	return func(p *Pipeline) {
		p.cfg.sink = sink
	}
}

// WithCache sets the store shared by resolution and render caching.
// The pipeline does not shut an injected store down.
func WithCache(store cache.Store) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

// WithMaxEntries bounds the default cache. Ignored with WithCache.
func WithMaxEntries(n int) Option {
	return func(p *Pipeline) {
		p.cfg.maxEntries = n
	}
}

// WithRenderTTL sets how long rendered results stay cached.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithRenderTTL(d time.Duration) Option {
	if d <= 0 {
		panic("mdrender: WithRenderTTL duration must be positive")
	}
	return func(p *Pipeline) {
		p.cfg.renderTTL = d
	}
}

// WithResolutionTTL sets how long backend resolutions stay cached.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithResolutionTTL(d time.Duration) Option {
	if d <= 0 {
		panic("mdrender: WithResolutionTTL duration must be positive")
	}
	return func(p *Pipeline) {
		p.cfg.resolutionTTL = d
	}
}

// WithReporter sets the structured error reporter.
func WithReporter(rep errreport.Reporter) Option {
	return func(p *Pipeline) {
		p.reporter = rep
	}
}

// WithLogger sets the logger. Defaults to the "pipeline" component logger.
// The backend resolver logs through it too, tagged component=resolver.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
		p.loggerSet = true
	}
}

// WithSecondaryRenderer replaces the goldmark renderer used for tier 2.
// A nil renderer disables tier 2.
func WithSecondaryRenderer(r SecondaryRenderer) Option {
	return func(p *Pipeline) {
		p.secondary = r
		p.secondarySet = true
	}
}

// WithStyles loads stylesheets from basePath/styles before the embedded
// ones. Only applies to the default secondary renderer.
func WithStyles(basePath string) Option {
	return func(p *Pipeline) {
		p.cfg.stylesPath = basePath
	}
}

// WithTOC toggles the numbered table of contents in tier 2 output.
func WithTOC(enabled bool) Option {
	return func(p *Pipeline) {
		p.cfg.toc = enabled
	}
}

// WithPathRewrite makes RenderSource rewrite relative img, media and link
// paths to file URLs under the source directory.
func WithPathRewrite(enabled bool) Option {
	return func(p *Pipeline) {
		p.cfg.rewritePaths = enabled
	}
}

// WithSourceDir sets the directory relative RenderSource locators resolve
// against. Defaults to the working directory.
func WithSourceDir(dir string) Option {
	return func(p *Pipeline) {
		p.cfg.sourceDir = dir
	}
}

// WithWatch evicts cached RenderSource results when their file changes.
func WithWatch(enabled bool) Option {
	return func(p *Pipeline) {
		p.cfg.watch = enabled
	}
}

// WithPrerenderLimit bounds Prerender parallelism. Zero sizes it from
// GOMAXPROCS.
func WithPrerenderLimit(n int) Option {
	return func(p *Pipeline) {
		p.cfg.prerenderLimit = n
	}
}
