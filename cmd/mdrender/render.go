package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-mdrender"
	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/hints"
	"github.com/alnah/go-mdrender/internal/logging"
	"github.com/alnah/go-mdrender/internal/metrics"
	"github.com/alnah/go-mdrender/internal/watch"
)

// ErrWriteHTML is returned when an output file cannot be written.
var ErrWriteHTML = errors.New("failed to write HTML file")

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// RenderOutcome holds the result of rendering one file.
type RenderOutcome struct {
	InputPath  string
	OutputPath string
	Tier       mdrender.Tier
	Cached     bool
	Err        error
	Duration   time.Duration
}

// batchError summarizes a batch with failures. It unwraps to the first
// failure so the exit code reflects it.
type batchError struct {
	failed, total int
	first         error
}

func (e *batchError) Error() string {
	return fmt.Sprintf("%d of %d render(s) failed", e.failed, e.total)
}

func (e *batchError) Unwrap() error { return e.first }

// runRenderCmd parses flags and runs the render command.
func runRenderCmd(ctx context.Context, args []string, env *Environment) error {
	flags, inputs, err := parseRenderFlags(args, env.Stdout)
	if err != nil {
		return err
	}
	logging.Setup(flags.common.verbosity(), env.Stderr)
	warnUnknownEnvVars(env.Stderr)
	return runRender(ctx, inputs, flags, env)
}

// runRender orchestrates discovery, batch rendering and, with --watch,
// re-rendering on change.
func runRender(ctx context.Context, inputs []string, flags *renderFlags, env *Environment) error {
	envCfg := loadEnvConfig()

	workers := flags.workers
	if workers == 0 {
		workers = envCfg.Workers
	}
	if err := validateWorkers(workers); err != nil {
		return err
	}
	if flags.timeout < 0 {
		return fmt.Errorf("%w: --timeout %v must not be negative", ErrUsage, flags.timeout)
	}

	s, err := loadSettings(flags.common.config, &flags.render, envCfg)
	if err != nil {
		return err
	}

	outputDir := flags.output
	if outputDir == "" {
		outputDir = s.cfg.Output.DefaultDir
	}

	files, err := discoverAll(inputs, outputDir)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no markdown files found in %s", ErrNoInput, strings.Join(inputs, ", "))
	}

	p, err := newPipeline(s)
	if err != nil {
		return err
	}
	defer p.Close()

	r := &renderer{
		p:       p,
		timeout: flags.timeout,
		workers: mdrender.ResolveWorkers(workers),
		quiet:   flags.common.quiet,
		verbose: flags.common.verbose > 0,
		env:     env,

		useBackend: s.cfg.Render.UseDynamicBackend,
	}
	if r.verbose {
		fmt.Fprintf(env.Stderr, "Workers: %d\n", r.workers)
	}

	// Resolve the backend while the first files are read.
	p.Warmup(ctx)

	results := r.batch(ctx, files)
	failed := r.printResults(results)
	r.warnBackend()

	if flags.metrics {
		if err := metrics.WriteText(env.Stderr); err != nil {
			fmt.Fprintf(env.Stderr, "warning: writing metrics: %v\n", err)
		}
	}

	if flags.watch {
		return r.watch(ctx, files, s.configPath)
	}

	if failed > 0 {
		var first error
		for _, res := range results {
			if res.Err != nil {
				first = res.Err
				break
			}
		}
		if len(results) == 1 {
			return first
		}
		return &batchError{failed: failed, total: len(results), first: first}
	}
	return nil
}

// renderer renders files through one shared pipeline.
type renderer struct {
	p       *mdrender.Pipeline
	timeout time.Duration
	workers int
	quiet   bool
	verbose bool
	env     *Environment

	useBackend bool // render.useDynamicBackend after overrides
}

// batch renders files concurrently, at most workers at a time.
func (r *renderer) batch(ctx context.Context, files []FileToRender) []RenderOutcome {
	if len(files) == 0 {
		return nil
	}

	results := make([]RenderOutcome, len(files))
	var g errgroup.Group
	g.SetLimit(min(r.workers, len(files)))

	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = RenderOutcome{InputPath: f.InputPath, OutputPath: f.OutputPath, Err: err}
				return nil
			}
			results[i] = r.renderFile(ctx, f)
			return nil
		})
	}

	_ = g.Wait() // workers never return errors
	return results
}

// renderFile renders one source and writes its HTML.
func (r *renderer) renderFile(ctx context.Context, f FileToRender) RenderOutcome {
	start := time.Now()
	out := RenderOutcome{InputPath: f.InputPath, OutputPath: f.OutputPath}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res := r.p.RenderSource(ctx, f.InputPath, nil)
	out.Tier, out.Cached = res.Tier, res.Cached
	if !res.Success {
		out.Err = r.explain(ctx, res)
		out.Duration = time.Since(start)
		return out
	}

	if err := os.MkdirAll(filepath.Dir(f.OutputPath), dirPermissions); err != nil {
		out.Err = withHint(fmt.Errorf("%w: creating output directory: %v", ErrWriteHTML, err), hints.ForOutputDirectory())
		out.Duration = time.Since(start)
		return out
	}

	// #nosec G306 -- HTML output is meant to be readable
	if err := os.WriteFile(f.OutputPath, []byte(res.HTML), filePermissions); err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrWriteHTML, err)
	}
	out.Duration = time.Since(start)
	return out
}

// explain turns a failed result into an error with an actionable hint.
func (r *renderer) explain(ctx context.Context, res *mdrender.RenderResult) error {
	err := res.Err()
	switch res.ErrorType {
	case mdrender.ContentTooLarge, mdrender.FileTooLarge:
		return withHint(err, hints.ForContentTooLarge(res.OptionsUsed.MaxContentLength))
	case mdrender.EncodingError:
		return withHint(err, hints.ForEncoding())
	case mdrender.AllRenderersFailed:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return withHint(err, hints.ForTimeout())
		}
		if d := r.p.Resolution(); d != nil && !d.Success {
			return withHint(err, hints.ForBackend(d, backend.DefaultRegistry().Names()))
		}
	}
	return err
}

// warnBackend reports a failed primary resolution. Renders still
// succeed through the lower tiers, so this is a warning.
func (r *renderer) warnBackend() {
	if r.quiet || !r.useBackend {
		return
	}
	d := r.p.Resolution()
	if d == nil || d.Success {
		return
	}
	fmt.Fprintf(r.env.Stderr, "warning: primary backend unavailable: %v%s\n",
		d.Err(), hints.ForBackend(d, backend.DefaultRegistry().Names()))
}

// printResults outputs results and returns the failure count.
func (r *renderer) printResults(results []RenderOutcome) int {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(r.env.Stderr, "FAILED %s: %v\n", res.InputPath, res.Err)
			continue
		}

		if r.quiet {
			continue
		}

		if r.verbose {
			cached := ""
			if res.Cached {
				cached = ", cached"
			}
			fmt.Fprintf(r.env.Stdout, "%s -> %s (%s%s, %v)\n",
				res.InputPath, res.OutputPath, res.Tier, cached, res.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(r.env.Stdout, "Created %s\n", res.OutputPath)
		}
	}

	if !r.quiet && len(results) > 1 {
		fmt.Fprintf(r.env.Stdout, "\n%d succeeded, %d failed\n", len(results)-failed, failed)
	}
	return failed
}

// watch re-renders a source when it changes, and every source when the
// config file changes, until ctx is canceled. Only backend configs are
// reloaded from the config file; render defaults keep their startup values.
func (r *renderer) watch(ctx context.Context, files []FileToRender, configPath string) error {
	changes := make(chan string, 16)
	w, err := watch.New(func(path string) {
		select {
		case changes <- path:
		default: // a re-render is already pending
		}
	}, watch.WithLogger(logging.Component("watch")))
	if err != nil {
		return withHint(fmt.Errorf("starting watcher: %w", err), hints.ForWatch(err))
	}
	defer w.Close()

	byPath := make(map[string]FileToRender, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f.InputPath)
		if err != nil {
			return err
		}
		if err := w.Watch(abs); err != nil {
			return withHint(err, hints.ForWatch(err))
		}
		byPath[abs] = f
	}

	var configAbs string
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return err
		}
		if err := w.Watch(abs); err != nil {
			return withHint(err, hints.ForWatch(err))
		}
		configAbs = abs
	}

	if !r.quiet {
		fmt.Fprintf(r.env.Stderr, "Watching %d file(s). Press Ctrl+C to stop.\n", len(byPath))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-changes:
			var todo []FileToRender
			switch f, ok := byPath[path]; {
			case path == configAbs:
				if err := r.p.Reconfigure(); err != nil {
					fmt.Fprintf(r.env.Stderr, "warning: %v\n", err)
					continue
				}
				for src, f := range byPath {
					r.p.InvalidatePath(src)
					todo = append(todo, f)
				}
			case ok:
				r.p.InvalidatePath(path)
				todo = []FileToRender{f}
			default:
				continue
			}
			r.printResults(r.batch(ctx, todo))
			r.warnBackend()
		}
	}
}
