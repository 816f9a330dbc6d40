package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alnah/go-mdrender/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string // MDRENDER_CONFIG: config file name or path
	Theme      string // MDRENDER_THEME: highlighting theme
	BackendDir string // MDRENDER_BACKEND_DIR: backend base directory
	MaxSize    int    // MDRENDER_MAX_SIZE: content limit in bytes
	Workers    int    // MDRENDER_WORKERS: parallel workers
}

// knownEnvVars lists valid MDRENDER_* environment variables.
var knownEnvVars = map[string]bool{
	"MDRENDER_CONFIG":      true,
	"MDRENDER_THEME":       true,
	"MDRENDER_BACKEND_DIR": true,
	"MDRENDER_MAX_SIZE":    true,
	"MDRENDER_WORKERS":     true,
}

// loadEnvConfig reads configuration from environment variables.
// Unparseable or non-positive numbers are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("MDRENDER_CONFIG"),
		Theme:      os.Getenv("MDRENDER_THEME"),
		BackendDir: os.Getenv("MDRENDER_BACKEND_DIR"),
	}

	if v := os.Getenv("MDRENDER_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	if v := os.Getenv("MDRENDER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	return cfg
}

// warnUnknownEnvVars prints warnings for unrecognized MDRENDER_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "MDRENDER_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment values over the loaded config.
// Precedence: CLI flags > env vars > config file > defaults
// (flags are applied later by mergeRenderFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) error {
	if env.Theme != "" {
		cfg.Render.Theme = env.Theme
	}
	if env.MaxSize > 0 {
		cfg.Render.MaxContentLength = env.MaxSize
	}
	if env.BackendDir != "" {
		dir, err := filepath.Abs(env.BackendDir)
		if err != nil {
			return fmt.Errorf("%w: MDRENDER_BACKEND_DIR: %v", config.ErrInvalidValue, err)
		}
		cfg.BackendBaseDir = dir
	}
	return nil
}

// resolveConfigName returns the config to load: flag first, then env.
// Empty means built-in defaults.
func resolveConfigName(flagValue string, env *envConfig) string {
	if flagValue != "" {
		return flagValue
	}
	return env.ConfigPath
}
