package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/glamour"

	"github.com/alnah/go-mdrender"
	"github.com/alnah/go-mdrender/internal/hints"
	"github.com/alnah/go-mdrender/internal/logging"
	"github.com/alnah/go-mdrender/internal/source"
)

// runPreviewCmd parses flags and runs the preview command.
func runPreviewCmd(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parsePreviewFlags(args, env.Stdout)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("%w: preview takes exactly one file, got %d", ErrUsage, len(positional))
	}
	logging.Setup(flags.common.verbosity(), env.Stderr)
	return runPreview(ctx, positional[0], flags, env)
}

// runPreview shows path in the terminal with glamour. When stdout is not
// a terminal it prints the pipeline's escaped text rendering instead.
func runPreview(ctx context.Context, path string, flags *previewFlags, env *Environment) error {
	if err := validateMarkdownExtension(path); err != nil {
		return err
	}

	s, err := loadSettings(flags.common.config, &flags.render, loadEnvConfig())
	if err != nil {
		return err
	}

	sources, err := source.NewResolver("")
	if err != nil {
		return err
	}
	res := sources.Resolve(path, source.Options{
		MaxSize:        int64(s.cfg.Render.MaxContentLength),
		ReadContent:    true,
		DetectEncoding: true,
	})
	if !res.Success {
		err := res.Err()
		switch res.ErrorType {
		case source.FileTooLarge:
			err = withHint(err, hints.ForContentTooLarge(s.cfg.Render.MaxContentLength))
		case source.EncodingError:
			err = withHint(err, hints.ForEncoding())
		}
		return err
	}

	if env.IsTerminal() {
		out, err := renderTerminal(res.Content, flags.style, flags.width)
		if err == nil {
			fmt.Fprint(env.Stdout, out)
			return nil
		}
		logger := logging.Component("preview")
		logger.Debug().Err(err).Msg("terminal rendering failed, using text")
	}

	return previewText(ctx, s, res.Content, env)
}

// renderTerminal renders markdown for an ANSI terminal.
func renderTerminal(content, style string, width int) (string, error) {
	var options []glamour.TermRendererOption
	if style != "" && style != "auto" {
		options = append(options, glamour.WithStylePath(style))
	} else {
		options = append(options, glamour.WithAutoStyle())
	}
	if width > 0 {
		options = append(options, glamour.WithWordWrap(width))
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}

// previewText prints the text tier of the pipeline.
func previewText(ctx context.Context, s *settings, content string, env *Environment) error {
	p, err := newPipeline(s, mdrender.WithSecondaryRenderer(nil))
	if err != nil {
		return err
	}
	defer p.Close()

	res := p.RenderString(ctx, content, &mdrender.Overrides{
		UseDynamicBackend: mdrender.Bool(false),
		FallbackToText:    mdrender.Bool(true),
	})
	if !res.Success {
		return res.Err()
	}
	fmt.Fprintln(env.Stdout, res.HTML)
	return nil
}
