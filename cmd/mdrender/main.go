package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	verbose := hasVerboseFlag(os.Args[1:])

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply.
	if verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	ctx, stop := notifyContext(context.Background())
	code := runMain(ctx, os.Args, DefaultEnv())
	stop()
	os.Exit(code)
}

// runMain dispatches to a command and returns the process exit code.
func runMain(ctx context.Context, args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[1], args[2:]

	var err error
	switch {
	case cmd == "render":
		err = runRenderCmd(ctx, rest, env)
	case cmd == "preview":
		err = runPreviewCmd(ctx, rest, env)
	case cmd == "backends":
		err = runBackendsCmd(ctx, rest, env)
	case cmd == "version" || cmd == "--version":
		fmt.Fprintf(env.Stdout, "mdrender %s\n", Version)
	case cmd == "help" || cmd == "-h" || cmd == "--help":
		runHelp(rest, env)
	case looksLikeMarkdown(cmd):
		// Shorthand: mdrender doc.md == mdrender render doc.md
		err = runRenderCmd(ctx, args[1:], env)
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}

	if err != nil {
		fmt.Fprintln(env.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// isCommand reports whether arg names a subcommand.
func isCommand(arg string) bool {
	switch arg {
	case "render", "preview", "backends", "version", "help":
		return true
	}
	return false
}

// looksLikeMarkdown reports whether arg is a markdown file path rather than a command.
func looksLikeMarkdown(arg string) bool {
	if isCommand(arg) || strings.HasPrefix(arg, "-") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(arg))
	return ext == ".md" || ext == ".markdown"
}

// hasVerboseFlag scans raw args before flag parsing.
func hasVerboseFlag(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "--verbose" || (len(a) > 1 && strings.HasPrefix(a, "-v") && strings.Trim(a[1:], "v") == "") {
			return true
		}
	}
	return false
}
