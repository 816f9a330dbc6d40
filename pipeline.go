package mdrender

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	// Built-in backends register themselves with the default registry.
	_ "github.com/alnah/go-mdrender/backends/legacy"
	_ "github.com/alnah/go-mdrender/backends/richmd"

	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/cache"
	"github.com/alnah/go-mdrender/internal/config"
	"github.com/alnah/go-mdrender/internal/errreport"
	"github.com/alnah/go-mdrender/internal/fileutil"
	"github.com/alnah/go-mdrender/internal/logging"
	"github.com/alnah/go-mdrender/internal/metrics"
	"github.com/alnah/go-mdrender/internal/pipeline"
	"github.com/alnah/go-mdrender/internal/source"
	"github.com/alnah/go-mdrender/internal/watch"
)

const renderKeyPrefix = "render:"

// errEmptyOutput marks a tier that returned no HTML.
var errEmptyOutput = errors.New("renderer produced no output")

// Pipeline renders Markdown through the tier cascade: primary backend,
// secondary library, text fallback. Safe for concurrent use.
// Create with New and release with Close.
type Pipeline struct {
	cfg      pipelineConfig
	defaults RenderOptions

	resolver     *backend.Resolver
	store        cache.Store
	ownsStore    bool
	reporter     errreport.Reporter
	logger       zerolog.Logger
	loggerSet    bool
	secondary    SecondaryRenderer
	secondarySet bool
	sources      *source.Resolver
	watcher      *watch.Watcher

	// Lazy primary resolution, forgotten by Reconfigure.
	group      singleflight.Group
	mu         sync.RWMutex
	resolution *backend.Descriptor
	generation uint64

	// Render cache keys written by RenderSource, by absolute path.
	pathMu   sync.Mutex
	pathKeys map[string]map[string]struct{}

	bgMu      sync.Mutex
	bg        sync.WaitGroup
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a Pipeline. Without options it resolves the "primary"
// backend from the built-in config (richmd, falling back to legacy), caches
// in memory and renders tier 2 with goldmark.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg: pipelineConfig{
			backendName: DefaultBackendName,
			fallbacks:   append([]string(nil), DefaultFallbacks...),
			renderTTL:   DefaultRenderTTL,
			toc:         true,
		},
		defaults: DefaultRenderOptions(),
		logger:   logging.Component("pipeline"),
		pathKeys: make(map[string]map[string]struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.reporter == nil {
		p.reporter = errreport.NewStructured(p.logger, errreport.DefaultHistorySize)
	}
	if p.store == nil {
		p.store = cache.NewMemory(cache.WithMaxEntries(p.cfg.maxEntries), cache.WithJanitor())
		p.ownsStore = true
	}

	if err := p.build(); err != nil {
		p.shutdown()
		return nil, err
	}
	return p, nil
}

// build creates the collaborators the caller did not inject.
func (p *Pipeline) build() error {
	if !p.secondarySet {
		sec, err := newGoldmarkSecondary(p.cfg.stylesPath, p.cfg.toc)
		if err != nil {
			return err
		}
		p.secondary = sec
	}

	if p.resolver == nil {
		src := p.cfg.source
		if src == nil {
			src = backend.StaticSource(config.DefaultConfig().BackendConfigs())
		}
		resolverLog := logging.Component("resolver")
		if p.loggerSet {
			resolverLog = p.logger.With().Str("component", "resolver").Logger()
		}
		r, err := backend.NewResolver(src,
			backend.WithLogger(resolverLog),
			backend.WithRegistry(p.cfg.registry),
			backend.WithCache(p.store),
			backend.WithSink(p.cfg.sink),
			backend.WithReporter(p.reporter),
			backend.WithBaseDir(p.cfg.baseDir),
			backend.WithTTL(p.cfg.resolutionTTL),
			backend.WithValidatedName(p.cfg.backendName),
		)
		if err != nil {
			return fmt.Errorf("creating backend resolver: %w", err)
		}
		p.resolver = r
	}

	sources, err := source.NewResolver(p.cfg.sourceDir)
	if err != nil {
		return fmt.Errorf("creating source resolver: %w", err)
	}
	p.sources = sources

	if p.cfg.watch {
		w, err := watch.New(p.sourceChanged, watch.WithLogger(p.logger))
		if err != nil {
			return err
		}
		p.watcher = w
	}
	return nil
}

// Render renders content through the tier cascade. A nil content is
// rejected with EmptyContent; an empty string renders an empty document.
// Render never returns nil and never panics on renderer faults.
func (p *Pipeline) Render(ctx context.Context, content *string, overrides *Overrides) *RenderResult {
	opts := p.defaults.merge(overrides)
	if content == nil {
		return failure(opts, EmptyContent, "content must not be nil")
	}
	res, _ := p.render(ctx, *content, opts)
	return res
}

// RenderString is Render for a plain string.
func (p *Pipeline) RenderString(ctx context.Context, content string, overrides *Overrides) *RenderResult {
	return p.Render(ctx, &content, overrides)
}

// render returns the result and the render cache key it used, empty when
// caching is off for the call.
func (p *Pipeline) render(ctx context.Context, content string, opts RenderOptions) (*RenderResult, string) {
	start := time.Now()

	// The size guard runs before any cache access.
	if len(content) > opts.MaxContentLength {
		return failure(opts, ContentTooLarge,
			fmt.Sprintf("content is %d bytes, limit is %d", len(content), opts.MaxContentLength)), ""
	}

	var key string
	if opts.CacheEnabled {
		key = cacheKey(content, opts)
		if res, ok := p.cached(key); ok {
			metrics.ObserveCache(true)
			p.logger.Debug().Str("tier", string(res.Tier)).Msg("Render cache hit")
			return res, key
		}
		metrics.ObserveCache(false)
	}

	res := p.cascade(ctx, content, opts)
	res.RenderTime = time.Since(start)

	if !res.Success {
		p.logger.Warn().Str("error", res.ErrorMessage).Int("contentLength", len(content)).Msg("All renderers failed")
		return res, key
	}

	metrics.ObserveRender(string(res.Tier), res.RenderTime)
	p.logger.Debug().
		Str("tier", string(res.Tier)).
		Dur("duration", res.RenderTime).
		Int("contentLength", len(content)).
		Msg("Rendered")

	// A canceled call may have degraded to text; keep it out of the cache.
	if opts.CacheEnabled && ctx.Err() == nil {
		p.store.Set(key, res.Clone(), p.cfg.renderTTL)
	}
	return res, key
}

// cascade tries each tier in order and returns the first output.
func (p *Pipeline) cascade(ctx context.Context, content string, opts RenderOptions) *RenderResult {
	var errs []string

	if opts.UseDynamicBackend {
		if fn, ok := p.primaryRender(ctx, opts); ok {
			out, err := p.runTier(TierPrimaryBackend, len(content), func() (string, error) {
				return fn(content, backend.RenderParams{
					Theme:           opts.Theme,
					SyntaxHighlight: opts.EnableSyntaxHighlight,
				})
			})
			if err == nil {
				return success(opts, TierPrimaryBackend, out)
			}
			errs = append(errs, string(TierPrimaryBackend)+": "+err.Error())
		}
	}

	if p.secondary != nil {
		out, err := p.runTier(TierSecondaryLibrary, len(content), func() (string, error) {
			return p.secondary.RenderHTML(ctx, content, opts)
		})
		if err == nil {
			return success(opts, TierSecondaryLibrary, out)
		}
		errs = append(errs, string(TierSecondaryLibrary)+": "+err.Error())
	}

	if opts.FallbackToText {
		return success(opts, TierTextFallback, pipeline.TextFallback(content))
	}

	msg := "no renderer available"
	if len(errs) > 0 {
		msg = strings.Join(errs, "; ")
	}
	return failure(opts, AllRenderersFailed, msg)
}

// primaryRender returns the backend capability for opts, if the primary
// resolution is complete and exposes it.
func (p *Pipeline) primaryRender(ctx context.Context, opts RenderOptions) (backend.RenderFunc, bool) {
	d := p.primary(ctx)
	if !d.Success || len(d.Capabilities) == 0 {
		return nil, false
	}

	capName := backend.CapRender
	if opts.EnableZoom {
		capName = backend.CapRenderZoom
	}
	fn, ok := d.Capabilities.Render(capName)
	if !ok {
		p.logger.Debug().Str("capability", capName).Str("backend", d.BackendName).Msg("Capability not exposed")
	}
	return fn, ok
}

// primary returns the lazy resolution, resolving on first use.
// Concurrent first calls share one resolve.
func (p *Pipeline) primary(ctx context.Context) *backend.Descriptor {
	p.mu.RLock()
	d, gen := p.resolution, p.generation
	p.mu.RUnlock()
	if d != nil {
		return d
	}

	v, _, _ := p.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		d := p.resolver.Resolve(ctx, p.cfg.backendName, p.cfg.fallbacks)
		p.mu.Lock()
		if p.generation == gen {
			p.resolution = d
		}
		p.mu.Unlock()
		return d, nil
	})
	return v.(*backend.Descriptor)
}

// runTier calls fn, converting a panic or empty output into an error.
// Failures are logged, counted and reported with the Fallback strategy.
func (p *Pipeline) runTier(tier Tier, contentLength int, fn func() (string, error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			p.tierFailed(tier, contentLength, err)
		}
	}()

	out, err = fn()
	if err == nil && out == "" {
		err = errEmptyOutput
	}
	return out, err
}

func (p *Pipeline) tierFailed(tier Tier, contentLength int, err error) {
	p.logger.Warn().Err(err).Str("tier", string(tier)).Msg("Renderer failed, falling back")
	metrics.ObserveTierFailure(string(tier))
	p.reporter.HandleError(&tierError{tier: tier, err: err}, errreport.Context{
		Operation: "render." + string(tier),
		Fields:    map[string]any{"contentLength": contentLength},
	}, errreport.Fallback)
}

// tierError carries the failing tier to the reporter.
type tierError struct {
	tier Tier
	err  error
}

func (e *tierError) Error() string { return string(e.tier) + ": " + e.err.Error() }

func (e *tierError) Unwrap() error { return e.err }

// ErrorCategory implements errreport.Categorizer.
func (e *tierError) ErrorCategory() errreport.Category {
	if e.tier == TierPrimaryBackend {
		return errreport.CategoryBackend
	}
	return errreport.CategoryRender
}

func (p *Pipeline) cached(key string) (*RenderResult, bool) {
	v, ok := p.store.Get(key)
	if !ok {
		return nil, false
	}
	r, ok := v.(*RenderResult)
	if !ok {
		return nil, false
	}
	out := r.Clone()
	out.Cached = true
	out.RenderTime = 0
	return out, true
}

// cacheKey hashes content with the canonical encoding of opts, so any
// option change yields a different key.
func cacheKey(content string, opts RenderOptions) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	enc, _ := json.Marshal(opts) // fixed field order; cannot fail for this struct
	h.Write(enc)
	return renderKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func success(opts RenderOptions, tier Tier, html string) *RenderResult {
	return &RenderResult{Success: true, HTML: html, Tier: tier, OptionsUsed: opts}
}

func failure(opts RenderOptions, kind ErrorType, msg string) *RenderResult {
	return &RenderResult{
		Tier:         TierErrorHandler,
		OptionsUsed:  opts,
		ErrorType:    kind,
		ErrorMessage: msg,
	}
}

// RenderSource reads locator through the content resolver and renders it.
// Relative locators resolve against WithSourceDir. With WithWatch the file
// is watched so edits evict its cached results; with WithPathRewrite
// relative paths in the output point at the source directory.
func (p *Pipeline) RenderSource(ctx context.Context, locator string, overrides *Overrides) *RenderResult {
	opts := p.defaults.merge(overrides)

	res := p.sources.Resolve(locator, source.Options{
		MaxSize:        int64(max(opts.MaxContentLength, 0)),
		ReadContent:    true,
		DetectEncoding: true,
	})
	if !res.Success {
		p.logger.Warn().Str("locator", locator).Str("error", res.ErrorMessage).Msg("Source resolution failed")
		result := failure(opts, ErrorType(res.ErrorType), res.ErrorMessage)
		if res.FilePath != "" {
			result.Source = &SourceInfo{Path: res.FilePath, Size: res.Info.Size, ModTime: res.Info.ModTime}
		}
		return result
	}

	p.watchPath(res.FilePath)

	result, key := p.render(ctx, res.Content, opts)
	if key != "" && result.Success {
		p.trackPath(res.FilePath, key)
	}
	result.Source = &SourceInfo{
		Path:     res.FilePath,
		Encoding: res.Encoding,
		Size:     res.Info.Size,
		ModTime:  res.Info.ModTime,
	}

	// Rewriting after caching keeps cached HTML independent of location.
	if p.cfg.rewritePaths && result.Success {
		rewritten, err := pipeline.RewriteRelativePaths(result.HTML, filepath.Dir(res.FilePath))
		if err != nil {
			p.logger.Warn().Err(err).Str("path", res.FilePath).Msg("Path rewrite failed")
		} else {
			result.HTML = rewritten
		}
	}
	return result
}

func (p *Pipeline) watchPath(path string) {
	if p.watcher == nil {
		return
	}
	if err := p.watcher.Watch(path); err != nil && !errors.Is(err, watch.ErrClosed) {
		p.logger.Warn().Err(err).Str("path", path).Msg("Cannot watch source")
	}
}

func (p *Pipeline) trackPath(path, key string) {
	p.pathMu.Lock()
	defer p.pathMu.Unlock()
	keys := p.pathKeys[path]
	if keys == nil {
		keys = make(map[string]struct{})
		p.pathKeys[path] = keys
	}
	keys[key] = struct{}{}
}

// InvalidatePath evicts render cache entries RenderSource produced for
// path and returns how many keys were dropped. The watcher calls it on
// change; callers without WithWatch can call it directly.
func (p *Pipeline) InvalidatePath(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0
	}

	p.pathMu.Lock()
	keys := p.pathKeys[abs]
	delete(p.pathKeys, abs)
	p.pathMu.Unlock()

	for key := range keys {
		p.store.Delete(key)
	}
	if len(keys) > 0 {
		p.logger.Debug().Str("path", abs).Int("entries", len(keys)).Msg("Invalidated cached renders")
	}
	return len(keys)
}

// sourceChanged evicts path's renders. A file that is gone is no longer
// watched; rendering it again re-registers it.
func (p *Pipeline) sourceChanged(path string) {
	p.InvalidatePath(path)
	if fileutil.FileExists(path) {
		return
	}
	p.detach("unwatch", func() {
		if err := p.watcher.Unwatch(path); err != nil {
			p.logger.Debug().Err(err).Str("path", path).Msg("Cannot unwatch source")
		}
	})
}

// WatchedPaths returns the source files the watcher tracks, sorted.
// It is empty without WithWatch.
func (p *Pipeline) WatchedPaths() []string {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Watched()
}

// Resolution returns a copy of the primary backend resolution, or nil if
// no render has needed it yet.
func (p *Pipeline) Resolution() *ResolutionDescriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolution.Clone()
}

// Resolve resolves the primary backend now and returns a copy of the result.
func (p *Pipeline) Resolve(ctx context.Context) *ResolutionDescriptor {
	return p.primary(ctx).Clone()
}

// Reconfigure reloads backend configs, drops cached resolutions and
// forgets the primary resolution, so the next render resolves again.
// Cached renders are kept until they expire.
func (p *Pipeline) Reconfigure() error {
	if err := p.resolver.Reload(); err != nil {
		return fmt.Errorf("reloading backend config: %w", err)
	}
	p.resolver.ClearCache()

	p.mu.Lock()
	p.resolution = nil
	p.generation++
	p.mu.Unlock()
	return nil
}

// Backends lists configured backends by priority.
func (p *Pipeline) Backends() []BackendConfig {
	return p.resolver.Configs()
}

// ResolverStats returns resolver counters.
func (p *Pipeline) ResolverStats() backend.Stats {
	return p.resolver.Stats()
}

// CacheStats returns the shared cache counters.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.store.Stats()
}

// Warmup resolves the primary backend in the background. It never blocks
// and failures only show up in the resolution itself.
func (p *Pipeline) Warmup(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	p.detach("warmup", func() {
		p.primary(ctx)
	})
}

// Prerender renders contents in the background to fill the cache, with
// parallelism bounded by WithPrerenderLimit. Canceling ctx stops items
// that have not started. Failures are swallowed.
func (p *Pipeline) Prerender(ctx context.Context, contents []string, overrides *Overrides) {
	items := append([]string(nil), contents...)
	renderCtx := context.WithoutCancel(ctx)

	p.detach("prerender", func() {
		var g errgroup.Group
		g.SetLimit(ResolveWorkers(p.cfg.prerenderLimit))
		for _, content := range items {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				if res := p.RenderString(renderCtx, content, overrides); !res.Success {
					p.logger.Debug().Str("error", res.ErrorMessage).Msg("Prerender failed")
				}
				return nil
			})
		}
		_ = g.Wait()
	})
}

// detach runs fn on a tracked goroutine unless the pipeline is closed.
func (p *Pipeline) detach(name string, fn func()) {
	p.bgMu.Lock()
	if p.closed {
		p.bgMu.Unlock()
		return
	}
	p.bg.Add(1)
	p.bgMu.Unlock()

	go func() {
		defer p.bg.Done()
		defer logging.LogDuration(p.logger, time.Now(), name)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Debug().Str("task", name).Interface("panic", r).Msg("Background task failed")
			}
		}()
		fn()
	}()
}

// Close stops the watcher, waits for background work and shuts down the
// cache if the pipeline created it. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.bgMu.Lock()
		p.closed = true
		p.bgMu.Unlock()

		p.bg.Wait()
		p.shutdown()
	})
	return p.closeErr
}

func (p *Pipeline) shutdown() {
	if p.watcher != nil {
		p.closeErr = p.watcher.Close()
	}
	if p.ownsStore {
		p.store.Shutdown()
	}
}
