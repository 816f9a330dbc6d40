package backend

import (
	"fmt"
	"sort"
)

// Config describes one resolvable backend.
type Config struct {
	Name                 string   `yaml:"name" json:"name"`
	Module               string   `yaml:"module" json:"module,omitempty"`
	SearchPath           string   `yaml:"searchPath" json:"searchPath"`
	Version              string   `yaml:"version" json:"version,omitempty"`
	Priority             int      `yaml:"priority" json:"priority"`
	RequiredCapabilities []string `yaml:"requiredCapabilities" json:"requiredCapabilities,omitempty"`
	FallbackEnabled      *bool    `yaml:"fallbackEnabled" json:"fallbackEnabled,omitempty"`
}

// AllowsFallback reports whether a failed resolution may try fallback
// candidates. An unset FallbackEnabled allows it.
func (c Config) AllowsFallback() bool {
	return c.FallbackEnabled == nil || *c.FallbackEnabled
}

// Bool returns a pointer to v, for setting FallbackEnabled.
func Bool(v bool) *bool {
	return &v
}

// ModuleName returns the registered module this backend loads.
func (c Config) ModuleName() string {
	if c.Module != "" {
		return c.Module
	}
	return c.Name
}

// clone returns a copy that shares no slices or pointers with c.
func (c Config) clone() Config {
	c.RequiredCapabilities = append([]string(nil), c.RequiredCapabilities...)
	if c.FallbackEnabled != nil {
		c.FallbackEnabled = Bool(*c.FallbackEnabled)
	}
	return c
}

// ConfigSource supplies backend configuration keyed by backend name.
// It is read at resolver construction and on every Reload.
type ConfigSource interface {
	Backends() (map[string]Config, error)
}

// StaticSource is a fixed in-memory ConfigSource.
type StaticSource map[string]Config

// Backends implements ConfigSource.
func (s StaticSource) Backends() (map[string]Config, error) {
	out := make(map[string]Config, len(s))
	for k, v := range s {
		out[k] = v.clone()
	}
	return out, nil
}

// normalizeConfigs fills names from keys and rejects mismatches.
func normalizeConfigs(in map[string]Config) (map[string]Config, error) {
	out := make(map[string]Config, len(in))
	for key, cfg := range in {
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrEmptyName)
		}
		if cfg.Name == "" {
			cfg.Name = key
		}
		if cfg.Name != key {
			return nil, fmt.Errorf("%w: key %q, name %q", ErrInvalidBackendName, key, cfg.Name)
		}
		out[key] = cfg.clone()
	}
	return out, nil
}

// sortConfigs orders configs by priority descending, then by name.
func sortConfigs(cfgs []Config) {
	sort.SliceStable(cfgs, func(i, j int) bool {
		if cfgs[i].Priority != cfgs[j].Priority {
			return cfgs[i].Priority > cfgs[j].Priority
		}
		return cfgs[i].Name < cfgs[j].Name
	})
}
