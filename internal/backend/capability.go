package backend

import (
	"reflect"
	"sort"
)

// Well-known capability names.
const (
	CapRender     = "render"
	CapRenderZoom = "render_zoom"
	CapVersion    = "version"
	CapThemes     = "themes"
)

// DefaultRequiredCapabilities are validated when a config lists none.
var DefaultRequiredCapabilities = []string{CapRender, CapRenderZoom}

// RenderParams are the per-call settings passed to a backend.
type RenderParams struct {
	Theme           string
	SyntaxHighlight bool
}

// RenderFunc is the signature of render and render_zoom.
type RenderFunc func(content string, params RenderParams) (string, error)

// Table maps capability names to live handles.
type Table map[string]any

// Names returns the capability names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render returns the named capability as a RenderFunc.
func (t Table) Render(name string) (RenderFunc, bool) {
	return asRender(t[name])
}

func asRender(sym any) (RenderFunc, bool) {
	switch fn := sym.(type) {
	case RenderFunc:
		return fn, fn != nil
	case func(string, RenderParams) (string, error):
		return fn, fn != nil
	default:
		return nil, false
	}
}

// Validation is the classification of a required capability set.
type Validation struct {
	Valid        []string
	Missing      []string
	NonInvocable []string
}

// IsValid reports whether every required capability is present and callable.
func (v Validation) IsValid() bool {
	return len(v.Missing) == 0 && len(v.NonInvocable) == 0
}

// ValidateCapabilities puts each required name in exactly one bucket.
// Duplicate names are classified once.
func ValidateCapabilities(required []string, symbols map[string]any) Validation {
	var v Validation
	seen := make(map[string]bool, len(required))
	for _, name := range required {
		if seen[name] {
			continue
		}
		seen[name] = true

		sym, ok := symbols[name]
		switch {
		case !ok:
			v.Missing = append(v.Missing, name)
		case !invocable(name, sym):
			v.NonInvocable = append(v.NonInvocable, name)
		default:
			v.Valid = append(v.Valid, name)
		}
	}
	return v
}

// invocable reports whether sym can be called as capability name. Render
// capabilities must match RenderFunc; others only need to be non-nil funcs.
func invocable(name string, sym any) bool {
	if name == CapRender || name == CapRenderZoom {
		_, ok := asRender(sym)
		return ok
	}
	if sym == nil {
		return false
	}
	rv := reflect.ValueOf(sym)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}
