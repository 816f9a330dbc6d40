package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdrender <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render     Render markdown files to HTML")
	fmt.Fprintln(w, "  preview    Show a markdown file in the terminal")
	fmt.Fprintln(w, "  backends   List backends and resolve the primary")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mdrender help <command>' for details on a specific command.")
}

func printCommonFlags(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             More logging (repeat for debug)")
}

func printRenderOptionFlags(w io.Writer) {
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --zoom                Zoomable layout")
	fmt.Fprintln(w, "      --no-highlight        Disable syntax highlighting")
	fmt.Fprintln(w, "      --theme <name>        Highlighting theme (e.g. github, dracula)")
	fmt.Fprintln(w, "      --max-size <bytes>    Maximum content size")
	fmt.Fprintln(w, "      --no-cache            Disable the render cache")
	fmt.Fprintln(w, "      --no-text-fallback    Fail instead of emitting escaped text")
	fmt.Fprintln(w, "      --no-backend          Skip the primary backend")
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdrender render <input>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render markdown files or directories to HTML.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Markdown files or directories")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel workers (0 = auto)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-file render timeout")
	fmt.Fprintln(w, "      --watch               Re-render when sources or config change")
	fmt.Fprintln(w, "      --metrics             Print metrics to stderr when done")
	fmt.Fprintln(w)
	printRenderOptionFlags(w)
	fmt.Fprintln(w)
	printCommonFlags(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  MDRENDER_CONFIG, MDRENDER_THEME, MDRENDER_BACKEND_DIR,")
	fmt.Fprintln(w, "  MDRENDER_MAX_SIZE, MDRENDER_WORKERS")
}

// printPreviewUsage prints usage for the preview command.
func printPreviewUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdrender preview <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Show a markdown file in the terminal. When stdout is not a")
	fmt.Fprintln(w, "terminal the escaped text rendering is printed instead.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Display:")
	fmt.Fprintln(w, "      --style <s>           auto, dark, light, notty or a style file")
	fmt.Fprintln(w, "      --width <n>           Wrap width")
	fmt.Fprintln(w)
	printCommonFlags(w)
}

// printBackendsUsage prints usage for the backends command.
func printBackendsUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdrender backends [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "List configured backends by priority and resolve the primary.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "      --json                Print JSON")
	printCommonFlags(w)
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "render":
		printRenderUsage(env.Stdout)
	case "preview":
		printPreviewUsage(env.Stdout)
	case "backends":
		printBackendsUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mdrender version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mdrender help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
