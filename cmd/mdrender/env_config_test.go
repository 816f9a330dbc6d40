package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-mdrender/internal/config"
)

// Notes:
// - These tests use t.Setenv and therefore cannot run in parallel.

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("MDRENDER_CONFIG", "work")
	t.Setenv("MDRENDER_THEME", "dracula")
	t.Setenv("MDRENDER_BACKEND_DIR", "/opt/backends")
	t.Setenv("MDRENDER_MAX_SIZE", "2048")
	t.Setenv("MDRENDER_WORKERS", "not-a-number")

	cfg := loadEnvConfig()

	want := envConfig{ConfigPath: "work", Theme: "dracula", BackendDir: "/opt/backends", MaxSize: 2048}
	if *cfg != want {
		t.Errorf("loadEnvConfig() = %+v, want %+v", *cfg, want)
	}
}

func TestLoadEnvConfig_NonPositiveIgnored(t *testing.T) {
	t.Setenv("MDRENDER_MAX_SIZE", "-5")
	t.Setenv("MDRENDER_WORKERS", "0")

	cfg := loadEnvConfig()
	if cfg.MaxSize != 0 || cfg.Workers != 0 {
		t.Errorf("loadEnvConfig() = %+v, want zero sizes", *cfg)
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	env := &envConfig{Theme: "monokai", MaxSize: 512, BackendDir: "backends"}

	if err := applyEnvConfig(env, cfg); err != nil {
		t.Fatalf("applyEnvConfig() error = %v", err)
	}
	if cfg.Render.Theme != "monokai" {
		t.Errorf("Theme = %q, want monokai", cfg.Render.Theme)
	}
	if cfg.Render.MaxContentLength != 512 {
		t.Errorf("MaxContentLength = %d, want 512", cfg.Render.MaxContentLength)
	}
	if !filepath.IsAbs(cfg.BackendBaseDir) || filepath.Base(cfg.BackendBaseDir) != "backends" {
		t.Errorf("BackendBaseDir = %q, want absolute path ending in backends", cfg.BackendBaseDir)
	}
}

func TestApplyEnvConfig_EmptyKeepsConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	want := cfg.Render

	if err := applyEnvConfig(&envConfig{}, cfg); err != nil {
		t.Fatalf("applyEnvConfig() error = %v", err)
	}
	if cfg.Render.Theme != want.Theme || cfg.Render.MaxContentLength != want.MaxContentLength {
		t.Errorf("render config changed: %+v", cfg.Render)
	}
	if cfg.BackendBaseDir != "" {
		t.Errorf("BackendBaseDir = %q, want empty", cfg.BackendBaseDir)
	}
}

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("MDRENDER_THEME", "github")
	t.Setenv("MDRENDER_THEMES", "typo")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "MDRENDER_THEMES") {
		t.Errorf("output = %q, want warning for MDRENDER_THEMES", out)
	}
	if strings.Contains(out, "MDRENDER_THEME ") {
		t.Errorf("output = %q, known variable was reported", out)
	}
}

func TestResolveConfigName(t *testing.T) {
	t.Parallel()

	env := &envConfig{ConfigPath: "from-env"}
	if got := resolveConfigName("from-flag", env); got != "from-flag" {
		t.Errorf("flag: got %q", got)
	}
	if got := resolveConfigName("", env); got != "from-env" {
		t.Errorf("env: got %q", got)
	}
	if got := resolveConfigName("", &envConfig{}); got != "" {
		t.Errorf("none: got %q", got)
	}
}
