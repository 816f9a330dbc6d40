package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"

	"github.com/alnah/go-mdrender/internal/cache"
	"github.com/alnah/go-mdrender/internal/diag"
	"github.com/alnah/go-mdrender/internal/errreport"
	"github.com/alnah/go-mdrender/internal/fileutil"
	"github.com/alnah/go-mdrender/internal/logging"
	"github.com/alnah/go-mdrender/internal/metrics"
)

// Defaults.
const (
	DefaultResolutionTTL = 2 * time.Hour
	DefaultValidatedName = "primary"
)

const (
	resolutionKeyPrefix = "backend:resolution:"
	exportKeyPrefix     = "backend:export:"
)

// DefaultBaseDir is where relative search paths resolve.
func DefaultBaseDir() string {
	return filepath.Join(xdg.DataHome, "mdrender", "backends")
}

// Stats are cumulative resolution counters.
type Stats struct {
	TotalAttempts  int64 `json:"totalAttempts"`
	Successes      int64 `json:"successes"`
	Failures       int64 `json:"failures"`
	CacheHits      int64 `json:"cacheHits"`
	FallbackUsages int64 `json:"fallbackUsages"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRegistry sets the module registry. Defaults to DefaultRegistry().
func WithRegistry(reg *Registry[Entry]) Option {
	return func(r *Resolver) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithCache sets the store used for resolution entries and export snapshots.
func WithCache(store cache.Store) Option {
	return func(r *Resolver) {
		if store != nil {
			r.store = store
		}
	}
}

// WithSink sets where export snapshots are written.
func WithSink(sink diag.Sink) Option {
	return func(r *Resolver) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// WithReporter sets the error reporter.
func WithReporter(rep errreport.Reporter) Option {
	return func(r *Resolver) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithBaseDir sets the directory relative search paths resolve against.
// It must be absolute.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) {
		if dir != "" {
			r.baseDir = dir
		}
	}
}

// WithTTL sets the resolution cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithValidatedName sets the identity whose capabilities are validated.
func WithValidatedName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.validated = name
		}
	}
}

// Resolver turns backend configuration into capability tables.
// It is safe for concurrent use.
type Resolver struct {
	source    ConfigSource
	registry  *Registry[Entry]
	store     cache.Store
	sink      diag.Sink
	reporter  errreport.Reporter
	logger    zerolog.Logger
	baseDir   string
	ttl       time.Duration
	validated string

	mu       sync.RWMutex
	configs  map[string]Config
	resolved map[string]struct{}

	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64
	fallbacks atomic.Int64
}

// NewResolver creates a Resolver and reads the configuration once.
// A nil source means no backend is configured.
func NewResolver(source ConfigSource, opts ...Option) (*Resolver, error) {
	if source == nil {
		source = StaticSource{}
	}
	r := &Resolver{
		source:    source,
		registry:  DefaultRegistry(),
		sink:      diag.Nop{},
		reporter:  errreport.Nop{},
		logger:    logging.Component("resolver"),
		baseDir:   DefaultBaseDir(),
		ttl:       DefaultResolutionTTL,
		validated: DefaultValidatedName,
		resolved:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = cache.NewMemory()
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload clears the configuration and re-reads it from the source.
// Cached resolutions are kept until they expire or ClearCache is called.
func (r *Resolver) Reload() error {
	raw, err := r.source.Backends()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigSource, err)
	}
	cfgs, err := normalizeConfigs(raw)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.configs = cfgs
	r.mu.Unlock()

	r.logger.Debug().Int("backends", len(cfgs)).Msg("backend configuration loaded")
	return nil
}

// Config returns the configuration for name.
func (r *Resolver) Config(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	if !ok {
		return Config{}, false
	}
	return cfg.clone(), true
}

// IsConfigured reports whether name has a configuration.
func (r *Resolver) IsConfigured(name string) bool {
	_, ok := r.Config(name)
	return ok
}

// Configs returns every configuration, highest priority first.
func (r *Resolver) Configs() []Config {
	r.mu.RLock()
	out := make([]Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg.clone())
	}
	r.mu.RUnlock()
	sortConfigs(out)
	return out
}

// ClearCache drops every cached resolution. Other entries of a shared
// store are left alone.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	names := make([]string, 0, len(r.resolved))
	for name := range r.resolved {
		names = append(names, name)
	}
	r.resolved = make(map[string]struct{})
	r.mu.Unlock()

	for _, name := range names {
		r.store.Delete(resolutionKey(name))
	}
	r.logger.Debug().Int("entries", len(names)).Msg("resolution cache cleared")
}

func (r *Resolver) remember(name string, d *Descriptor) {
	r.mu.Lock()
	r.resolved[name] = struct{}{}
	r.mu.Unlock()
	r.store.Set(resolutionKey(name), d.Clone(), r.ttl)
}

// Stats returns a copy of the counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		TotalAttempts:  r.attempts.Load(),
		Successes:      r.successes.Load(),
		Failures:       r.failures.Load(),
		CacheHits:      r.cacheHits.Load(),
		FallbackUsages: r.fallbacks.Load(),
	}
}

// Resolve resolves name, falling back to each candidate in order.
func (r *Resolver) Resolve(ctx context.Context, name string, fallbacks []string) *Descriptor {
	start := time.Now()
	r.attempts.Add(1)

	d := r.resolve(name, fallbacks)
	d.Timestamp = time.Now()
	r.record(ctx, d, time.Since(start))
	return d
}

func (r *Resolver) resolve(name string, fallbacks []string) *Descriptor {
	if name == "" {
		r.failures.Add(1)
		return failed("", CodeConfigError, StatusImportFailed, ErrEmptyName.Error())
	}

	if v, ok := r.store.Get(resolutionKey(name)); ok {
		if cached, ok := v.(*Descriptor); ok {
			r.cacheHits.Add(1)
			d := cached.Clone()
			d.Cached = true
			d.Method = MethodCache
			return d
		}
	}

	cfg, configured := r.Config(name)
	var d *Descriptor
	if configured {
		d = r.loadConfigured(cfg)
	} else {
		d = failed(name, CodeConfigError, StatusImportFailed, fmt.Sprintf("%v: %s", ErrNotConfigured, name))
	}
	if d.Success {
		r.successes.Add(1)
		r.remember(name, d)
		return d
	}

	messages := []string{d.Message}
	if !configured || cfg.AllowsFallback() {
		for _, candidate := range fallbacks {
			d.FallbacksTried = append(d.FallbacksTried, candidate)
			mod, err := r.loadNamed(candidate)
			if err != nil {
				r.logger.Debug().Str("backend", name).Str("fallback", candidate).Err(err).Msg("fallback load failed")
				r.reporter.HandleError(err, errreport.Context{
					Operation: "backend.fallback",
					Fields:    map[string]any{"backend": name, "fallback": candidate},
				}, errreport.Fallback)
				messages = append(messages, fmt.Sprintf("fallback %s: %v", candidate, err))
				continue
			}

			fb := &Descriptor{
				Success:        true,
				BackendName:    name,
				FallbackName:   candidate,
				ModuleVersion:  mod.Version,
				Capabilities:   Table{},
				UsedFallback:   true,
				Message:        fmt.Sprintf("resolved via fallback %s", candidate),
				AttemptedPaths: d.AttemptedPaths,
				FallbacksTried: d.FallbacksTried,
				Status:         StatusComplete,
				Method:         MethodFallback,
			}
			r.successes.Add(1)
			r.fallbacks.Add(1)
			r.remember(name, fb)
			return fb
		}
	}

	r.failures.Add(1)
	d.Message = strings.Join(messages, "; ")
	d.Method = MethodNone
	return d
}

// loadConfigured runs the path check, the scoped load and, for the
// validated identity, capability validation.
func (r *Resolver) loadConfigured(cfg Config) *Descriptor {
	searchPath := cfg.SearchPath
	if searchPath == "" {
		searchPath = cfg.Name
	}
	dir, err := fileutil.ResolveAgainst(r.baseDir, searchPath)
	if err != nil {
		return failed(cfg.Name, CodeConfigError, StatusImportFailed, err.Error())
	}

	d := failed(cfg.Name, CodeNone, StatusImportFailed, "")
	d.AttemptedPaths = []string{dir}

	if !fileutil.DirExists(dir) {
		d.Code = CodePathNotFound
		d.Message = fmt.Sprintf("%v: %s", ErrPathNotFound, dir)
		return d
	}

	mod, err := r.loadScoped(cfg, dir)
	if err != nil {
		d.Code = codeOf(err)
		d.Message = err.Error()
		r.reporter.HandleError(err, errreport.Context{
			Operation: "backend.resolve",
			Fields:    map[string]any{"backend": cfg.Name, "path": dir},
		}, errreport.Fallback)
		return d
	}

	if cfg.Name == r.validated {
		required := cfg.RequiredCapabilities
		if len(required) == 0 {
			required = DefaultRequiredCapabilities
		}
		v := ValidateCapabilities(required, mod.Symbols)
		if !v.IsValid() {
			d.Code = CodeMissingCapabilities
			d.Status = StatusIncomplete
			d.MissingCapabilities = v.Missing
			d.NonInvocableCapabilities = v.NonInvocable
			d.ModuleVersion = mod.Version
			d.Message = fmt.Sprintf("%v: missing %v, not invocable %v", ErrIncomplete, v.Missing, v.NonInvocable)
			return d
		}
	}

	d.Success = true
	d.Code = CodeNone
	d.Status = StatusComplete
	d.Method = MethodConfigured
	d.ResolvedPath = dir
	d.ModuleVersion = mod.Version
	d.Capabilities = buildTable(mod.Symbols)
	return d
}

// loadScoped loads cfg's module with dir at the front of the process search
// path. The lock is held for the whole step and the path is restored on
// every exit, panics included.
func (r *Resolver) loadScoped(cfg Config, dir string) (mod *Module, err error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	release := processPath.Acquire(dir)
	defer release()

	return r.load(cfg.ModuleName(), cfg.Version, LoadContext{
		Name:       cfg.Name,
		Dir:        dir,
		SearchPath: processPath.Dirs(),
	})
}

// loadNamed is the non-validated fallback load: registry lookup by name, or
// by the candidate's configured module, with no path scoping.
func (r *Resolver) loadNamed(name string) (*Module, error) {
	module, constraint := name, ""
	if cfg, ok := r.Config(name); ok {
		module, constraint = cfg.ModuleName(), cfg.Version
	}

	loadMu.Lock()
	defer loadMu.Unlock()

	return r.load(module, constraint, LoadContext{Name: name, SearchPath: processPath.Dirs()})
}

// load looks up and runs a loader. Callers hold loadMu.
func (r *Resolver) load(module, constraint string, lc LoadContext) (mod *Module, err error) {
	entry, ok := r.registry.Get(module)
	if !ok {
		return nil, &loadError{code: CodeImportError, err: fmt.Errorf("%w: %s", ErrNotRegistered, module)}
	}

	if constraint != "" {
		c, cerr := semver.NewConstraint(constraint)
		if cerr != nil {
			return nil, &loadError{code: CodeConfigError, err: fmt.Errorf("%w: %q: %v", ErrInvalidConstraint, constraint, cerr)}
		}
		if !c.Check(entry.Version) {
			return nil, &loadError{code: CodeImportError, err: fmt.Errorf("%w: %s %s does not satisfy %q", ErrVersionMismatch, module, entry.Version, constraint)}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			mod = nil
			err = &loadError{code: CodeUnknownError, err: fmt.Errorf("%w: %s: %v", ErrLoaderPanic, module, rec)}
		}
	}()

	mod, err = entry.Load(lc)
	if err != nil {
		return nil, &loadError{code: CodeImportError, err: fmt.Errorf("loading %s: %w", module, err)}
	}
	if mod == nil {
		return nil, &loadError{code: CodeImportError, err: fmt.Errorf("%w: %s", ErrNilModule, module)}
	}
	if mod.Version == "" {
		mod.Version = entry.Version.String()
	}
	return mod, nil
}

// record logs the outcome, updates metrics and writes the export snapshot.
func (r *Resolver) record(ctx context.Context, d *Descriptor, elapsed time.Duration) {
	snap := d.Snapshot()

	event := r.logger.Debug()
	if !d.Success {
		event = r.logger.Warn()
	}
	event.
		Str("backend", d.BackendName).
		Str("method", string(snap.Method)).
		Bool("success", d.Success).
		Bool("usedFallback", d.UsedFallback).
		Strs("capabilities", snap.CapabilityNames).
		Str("code", string(d.Code)).
		Dur("elapsed", elapsed).
		Msg("backend resolution")

	metrics.ObserveResolution(d.BackendName, outcomeOf(d), elapsed)

	if d.BackendName == "" {
		return
	}
	r.store.Set(ExportKey(d.BackendName), snap, r.ttl)
	if err := r.sink.Write(ctx, "resolution-"+d.BackendName, snap); err != nil {
		r.logger.Debug().Err(err).Str("backend", d.BackendName).Msg("snapshot export failed")
	}
}

func outcomeOf(d *Descriptor) string {
	switch {
	case d.Cached:
		return metrics.OutcomeCacheHit
	case d.UsedFallback:
		return metrics.OutcomeFallback
	case d.Success:
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeFailure
	}
}

func codeOf(err error) ErrorCode {
	var le *loadError
	if errors.As(err, &le) {
		return le.Code()
	}
	return CodeUnknownError
}

// buildTable keeps the invocable symbols.
func buildTable(symbols map[string]any) Table {
	t := make(Table, len(symbols))
	for name, sym := range symbols {
		if invocable(name, sym) {
			t[name] = sym
		}
	}
	return t
}

func failed(name string, code ErrorCode, status Status, msg string) *Descriptor {
	return &Descriptor{
		BackendName: name,
		Code:        code,
		Message:     msg,
		Status:      status,
		Method:      MethodNone,
	}
}

func resolutionKey(name string) string { return resolutionKeyPrefix + name }

// ExportKey is the cache key of the export snapshot for name.
func ExportKey(name string) string { return exportKeyPrefix + name }
