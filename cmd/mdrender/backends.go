package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/alnah/go-mdrender"
	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/hints"
	"github.com/alnah/go-mdrender/internal/logging"
)

// backendsReport is the --json output of the backends command.
type backendsReport struct {
	Registered []string                    `json:"registered"`
	Backends   []mdrender.BackendConfig    `json:"backends"`
	Primary    mdrender.ResolutionSnapshot `json:"primary"`
	Resolver   backend.Stats               `json:"resolver"`
}

// runBackendsCmd parses flags and runs the backends command.
func runBackendsCmd(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseBackendsFlags(args, env.Stdout)
	if err != nil {
		return err
	}
	logging.Setup(flags.common.verbosity(), env.Stderr)
	return runBackends(ctx, flags, env)
}

// runBackends lists configured backends and resolves the primary. A failed
// resolution is an error so scripts can gate on the exit code.
func runBackends(ctx context.Context, flags *backendsFlags, env *Environment) error {
	s, err := loadSettings(flags.common.config, nil, loadEnvConfig())
	if err != nil {
		return err
	}

	p, err := newPipeline(s)
	if err != nil {
		return err
	}
	defer p.Close()

	d := p.Resolve(ctx)
	registered := backend.DefaultRegistry().Names()

	if flags.json {
		report := backendsReport{
			Registered: registered,
			Backends:   p.Backends(),
			Primary:    d.Snapshot(),
			Resolver:   p.ResolverStats(),
		}
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else if !flags.common.quiet {
		printBackends(env, p.Backends(), registered, d)
	}

	if !d.Success {
		return withHint(d.Err(), hints.ForBackend(d, registered))
	}
	return nil
}

func printBackends(env *Environment, cfgs []mdrender.BackendConfig, registered []string, d *mdrender.ResolutionDescriptor) {
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODULE\tSEARCH PATH\tVERSION\tPRIORITY\tFALLBACK")
	for _, c := range cfgs {
		version := c.Version
		if version == "" {
			version = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n", c.Name, c.ModuleName(), c.SearchPath, version, c.Priority, c.AllowsFallback())
	}
	_ = tw.Flush()

	fmt.Fprintln(env.Stdout)
	fmt.Fprintf(env.Stdout, "Registered modules: %s\n", strings.Join(registered, ", "))

	switch {
	case !d.Success:
		fmt.Fprintf(env.Stdout, "Primary %s: failed (%s)\n", d.BackendName, d.Code)
	case d.UsedFallback:
		fmt.Fprintf(env.Stdout, "Primary %s: resolved via fallback %s %s\n", d.BackendName, d.FallbackName, d.ModuleVersion)
	default:
		fmt.Fprintf(env.Stdout, "Primary %s: %s %s at %s [%s]\n",
			d.BackendName, d.Status, d.ModuleVersion, d.ResolvedPath, strings.Join(d.Capabilities.Names(), ", "))
	}
}
