package main

import (
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose int
}

// renderOptionFlags map onto mdrender.RenderOptions.
type renderOptionFlags struct {
	zoom           bool
	noHighlight    bool
	theme          string
	maxSize        int
	noCache        bool
	noTextFallback bool
	noBackend      bool
}

// renderFlags holds all flags for the render command.
type renderFlags struct {
	common  commonFlags
	render  renderOptionFlags
	output  string
	workers int
	timeout time.Duration
	metrics bool
	watch   bool
}

// previewFlags holds flags for the preview command.
type previewFlags struct {
	common commonFlags
	render renderOptionFlags
	style  string
	width  int
}

// backendsFlags holds flags for the backends command.
type backendsFlags struct {
	common commonFlags
	json   bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.CountVarP(&f.verbose, "verbose", "v", "more logging (-v info, -vv debug)")
}

// addRenderOptionFlags adds render option flags to a FlagSet.
func addRenderOptionFlags(fs *flag.FlagSet, f *renderOptionFlags) {
	fs.BoolVar(&f.zoom, "zoom", false, "use the zoomable layout")
	fs.BoolVar(&f.noHighlight, "no-highlight", false, "disable syntax highlighting")
	fs.StringVar(&f.theme, "theme", "", "syntax highlighting theme")
	fs.IntVar(&f.maxSize, "max-size", 0, "maximum content size in bytes (0 = config)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the render cache")
	fs.BoolVar(&f.noTextFallback, "no-text-fallback", false, "fail instead of emitting escaped text")
	fs.BoolVar(&f.noBackend, "no-backend", false, "skip the primary backend")
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string, usage io.Writer) (*renderFlags, []string, error) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := &renderFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-file render timeout (e.g. 10s)")
	fs.BoolVar(&f.metrics, "metrics", false, "print metrics to stderr when done")
	fs.BoolVar(&f.watch, "watch", false, "re-render when sources change")

	addCommonFlags(fs, &f.common)
	addRenderOptionFlags(fs, &f.render)

	fs.Usage = func() { printRenderUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, usageError(err)
	}
	return f, fs.Args(), nil
}

// parsePreviewFlags parses preview command flags and returns positional args.
func parsePreviewFlags(args []string, usage io.Writer) (*previewFlags, []string, error) {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := &previewFlags{}

	fs.StringVar(&f.style, "style", "auto", "terminal style: auto, dark, light, notty or a style file")
	fs.IntVar(&f.width, "width", 0, "wrap width (0 = renderer default)")

	addCommonFlags(fs, &f.common)
	addRenderOptionFlags(fs, &f.render)

	fs.Usage = func() { printPreviewUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, usageError(err)
	}
	return f, fs.Args(), nil
}

// parseBackendsFlags parses backends command flags.
func parseBackendsFlags(args []string, usage io.Writer) (*backendsFlags, error) {
	fs := flag.NewFlagSet("backends", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := &backendsFlags{}

	fs.BoolVar(&f.json, "json", false, "print JSON")
	addCommonFlags(fs, &f.common)

	fs.Usage = func() { printBackendsUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, usageError(err)
	}
	return f, nil
}

// verbosity maps --quiet and --verbose to a logging.Setup level.
func (c commonFlags) verbosity() int {
	if c.quiet {
		return -1
	}
	return c.verbose
}
