package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-mdrender/internal/config"
)

func TestMergeRenderFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		flags renderOptionFlags
		check func(t *testing.T, r config.RenderConfig)
	}{
		{
			name:  "no flags keeps config",
			flags: renderOptionFlags{},
			check: func(t *testing.T, r config.RenderConfig) {
				def := config.DefaultConfig().Render
				if r.Theme != def.Theme || r.MaxContentLength != def.MaxContentLength || r.EnableZoom != def.EnableZoom {
					t.Errorf("render config changed: %+v", r)
				}
			},
		},
		{
			name:  "values override",
			flags: renderOptionFlags{theme: "dracula", maxSize: 100},
			check: func(t *testing.T, r config.RenderConfig) {
				if r.Theme != "dracula" || r.MaxContentLength != 100 {
					t.Errorf("Theme = %q, MaxContentLength = %d", r.Theme, r.MaxContentLength)
				}
			},
		},
		{
			name: "switches",
			flags: renderOptionFlags{
				zoom: true, noHighlight: true, noCache: true, noTextFallback: true, noBackend: true,
			},
			check: func(t *testing.T, r config.RenderConfig) {
				if !r.EnableZoom || r.EnableSyntaxHighlight || r.CacheEnabled || r.FallbackToText || r.UseDynamicBackend {
					t.Errorf("switches not applied: %+v", r)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			if err := mergeRenderFlags(&tt.flags, cfg); err != nil {
				t.Fatalf("mergeRenderFlags() error = %v", err)
			}
			tt.check(t, cfg.Render)
		})
	}
}

func TestMergeRenderFlags_NegativeMaxSize(t *testing.T) {
	t.Parallel()

	err := mergeRenderFlags(&renderOptionFlags{maxSize: -1}, config.DefaultConfig())
	if !errors.Is(err, ErrUsage) {
		t.Errorf("error = %v, want ErrUsage", err)
	}
}

func TestValidateTheme(t *testing.T) {
	t.Parallel()

	assets := t.TempDir()
	if err := os.MkdirAll(filepath.Join(assets, "styles"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assets, "styles", "house.css"), []byte(".chroma{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		theme    string
		basePath string
		wantErr  bool
	}{
		{"empty", "", "", false},
		{"chroma style", "monokai", "", false},
		{"asset stylesheet", "house", assets, false},
		{"asset missing", "house", "", true},
		{"unknown", "no-such-theme", assets, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			cfg.Render.Theme = tt.theme
			cfg.Assets.BasePath = tt.basePath

			err := validateTheme(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateTheme(%q) error = %v, wantErr %v", tt.theme, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrUnknownTheme) {
					t.Errorf("error = %v, want ErrUnknownTheme", err)
				}
				if !strings.Contains(err.Error(), "hint: available:") {
					t.Errorf("error = %q, want theme hint", err)
				}
			}
		})
	}
}

func TestWithHint(t *testing.T) {
	t.Parallel()

	base := errors.New("base")
	if got := withHint(base, ""); got != base {
		t.Errorf("empty hint changed the error: %v", got)
	}
	if got := withHint(nil, "\n  hint: x"); got != nil {
		t.Errorf("nil error gained a hint: %v", got)
	}

	got := withHint(base, "\n  hint: try again")
	if !errors.Is(got, base) || !strings.HasSuffix(got.Error(), "hint: try again") {
		t.Errorf("withHint() = %v", got)
	}
}
