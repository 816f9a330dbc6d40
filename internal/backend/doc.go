// Package backend resolves optional rendering backends into validated
// capability tables.
//
// Backends are Go packages that register a Loader under a module name from
// init. A Resolver combines that registry with configuration: it checks the
// configured search path exists, loads the module with the path scoped onto
// the process search path, validates the required capabilities of the
// primary identity, and falls back to simpler named backends when any of
// that fails. Every outcome is a Descriptor; Resolve never returns an error
// or panics.
//
// Basic usage:
//
//	r, err := backend.NewResolver(backend.StaticSource{
//	    "primary": {SearchPath: "richmd", Module: "richmd"},
//	})
//	if err != nil {
//	    return err
//	}
//	d := r.Resolve(ctx, "primary", []string{"legacy"})
//	if render, ok := d.Capabilities.Render(backend.CapRender); ok {
//	    html, err := render(markdown, backend.RenderParams{Theme: "github"})
//	}
//
// The process search path is a shared mutable resource. All load steps,
// across every Resolver, are serialized by a single package lock.
package backend
