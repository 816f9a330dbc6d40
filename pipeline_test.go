package mdrender_test

import (
	"bytes"
	"context"
	"errors"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-mdrender"
	"github.com/alnah/go-mdrender/backends/richmd"
	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/cache"
	"github.com/alnah/go-mdrender/internal/diag"
	"github.com/alnah/go-mdrender/internal/errreport"
)

// Notes:
// - Background work (Warmup, Prerender) is checked after Close, which waits
//   for it, so those tests need no polling.
// - TestRenderSource_WatchEvicts relies on fsnotify delivering a write event
//   within a few seconds.

// logBuffer is a bytes.Buffer safe for concurrent log writes.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stubBackend is a registrable module whose symbols tests control.
type stubBackend struct {
	loads  atomic.Int32
	render backend.RenderFunc
	zoom   backend.RenderFunc // nil: not exposed
}

func (s *stubBackend) load(lc backend.LoadContext) (*backend.Module, error) {
	s.loads.Add(1)
	syms := map[string]any{backend.CapRender: s.render}
	if s.zoom != nil {
		syms[backend.CapRenderZoom] = s.zoom
	}
	return &backend.Module{Name: lc.Name, Dir: lc.Dir, Symbols: syms}, nil
}

func marker(name string) backend.RenderFunc {
	return func(content string, _ backend.RenderParams) (string, error) {
		return "<h1>" + name + "</h1>" + html.EscapeString(content), nil
	}
}

func completeBackend() *stubBackend {
	return &stubBackend{render: marker("plain"), zoom: marker("zoom")}
}

type fixture struct {
	p        *mdrender.Pipeline
	store    *cache.Memory
	reporter *errreport.Structured
	base     string
}

// newFixture builds a pipeline whose "primary" backend is sb, loaded from
// a temp base dir, with no fallbacks.
func newFixture(t *testing.T, sb *stubBackend, opts ...mdrender.Option) *fixture {
	t.Helper()

	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "primary"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	reg := backend.NewRegistry[backend.Entry]()
	entry, err := backend.NewEntry("primary", "1.0.0", sb.load)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	if err := reg.Add("primary", entry); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	store := cache.NewMemory()
	rep := errreport.NewStructured(zerolog.Nop(), 0)

	all := append([]mdrender.Option{
		mdrender.WithRegistry(reg),
		mdrender.WithBackendBaseDir(base),
		mdrender.WithBackendSource(backend.StaticSource{"primary": {SearchPath: "primary"}}),
		mdrender.WithFallbacks(),
		mdrender.WithCache(store),
		mdrender.WithReporter(rep),
		mdrender.WithLogger(zerolog.Nop()),
	}, opts...)

	p, err := mdrender.New(all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = p.Close()
		store.Shutdown()
	})
	return &fixture{p: p, store: store, reporter: rep, base: base}
}

var failingSecondary = mdrender.SecondaryFunc(func(context.Context, string, mdrender.RenderOptions) (string, error) {
	return "", errors.New("secondary unavailable")
})

// ---------------------------------------------------------------------------
// TestRender_PrimaryBackend - Tier 1
// ---------------------------------------------------------------------------

func TestRender_PrimaryBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		overrides *mdrender.Overrides
		want      string
	}{
		{
			name: "plain render by default",
			want: "<h1>plain</h1>",
		},
		{
			name:      "zoom selects render_zoom",
			overrides: &mdrender.Overrides{EnableZoom: mdrender.Bool(true)},
			want:      "<h1>zoom</h1>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, completeBackend())
			res := f.p.RenderString(context.Background(), "# Title\n\nBody", tt.overrides)

			if !res.Success {
				t.Fatalf("Render() failed: %s", res.ErrorMessage)
			}
			if res.Tier != mdrender.TierPrimaryBackend {
				t.Errorf("Tier = %q, want %q", res.Tier, mdrender.TierPrimaryBackend)
			}
			if !strings.HasPrefix(res.HTML, tt.want) {
				t.Errorf("HTML = %q, want prefix %q", res.HTML, tt.want)
			}
			if res.Cached {
				t.Error("first render reported cached")
			}
		})
	}
}

func TestRender_RichmdBackend(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "primary"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	reg := backend.NewRegistry[backend.Entry]()
	entry, err := backend.NewEntry("primary", richmd.Version, richmd.Load)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	_ = reg.Add("primary", entry)

	p, err := mdrender.New(
		mdrender.WithRegistry(reg),
		mdrender.WithBackendBaseDir(base),
		mdrender.WithBackendSource(backend.StaticSource{"primary": {SearchPath: "primary"}}),
		mdrender.WithLogger(zerolog.Nop()),
		mdrender.WithReporter(errreport.Nop{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	res := p.RenderString(context.Background(), "# Title\n\nBody", nil)
	if res.Tier != mdrender.TierPrimaryBackend {
		t.Fatalf("Tier = %q, want %q (%s)", res.Tier, mdrender.TierPrimaryBackend, res.ErrorMessage)
	}
	if !strings.Contains(res.HTML, `<h1 id="title">Title</h1>`) {
		t.Errorf("HTML missing heading:\n%s", res.HTML)
	}
}

// ---------------------------------------------------------------------------
// TestRender_Cache - Idempotence, key sensitivity, isolation
// ---------------------------------------------------------------------------

func TestRender_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	ctx := context.Background()

	first := f.p.RenderString(ctx, "# Same", nil)
	second := f.p.RenderString(ctx, "# Same", nil)

	if !first.Success || !second.Success {
		t.Fatalf("renders failed: %q, %q", first.ErrorMessage, second.ErrorMessage)
	}
	if first.HTML != second.HTML {
		t.Error("cached HTML differs from first render")
	}
	if first.Cached {
		t.Error("first render reported cached")
	}
	if !second.Cached {
		t.Error("second render should be cached")
	}
	if second.RenderTime != 0 {
		t.Errorf("cached RenderTime = %v, want 0", second.RenderTime)
	}
	if second.Tier != first.Tier {
		t.Errorf("cached Tier = %q, want %q", second.Tier, first.Tier)
	}
}

func TestRender_CacheKeySensitivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	ctx := context.Background()

	f.p.RenderString(ctx, "# Doc", nil)
	res := f.p.RenderString(ctx, "# Doc", &mdrender.Overrides{EnableZoom: mdrender.Bool(true)})

	if res.Cached {
		t.Error("changing EnableZoom must not hit the previous entry")
	}
	if !strings.HasPrefix(res.HTML, "<h1>zoom</h1>") {
		t.Errorf("HTML = %q, want zoom output", res.HTML)
	}
}

func TestRender_CachedCopyIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	ctx := context.Background()

	first := f.p.RenderString(ctx, "# Doc", nil)
	want := first.HTML
	first.HTML = "mutated"
	first.OptionsUsed.Theme = "mutated"

	second := f.p.RenderString(ctx, "# Doc", nil)
	second.HTML = "mutated again"

	third := f.p.RenderString(ctx, "# Doc", nil)
	if third.HTML != want {
		t.Errorf("cache entry corrupted: HTML = %q, want %q", third.HTML, want)
	}
	if third.OptionsUsed.Theme == "mutated" {
		t.Error("cache entry corrupted: OptionsUsed changed")
	}
}

func TestRender_CacheDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	ctx := context.Background()
	noCache := &mdrender.Overrides{CacheEnabled: mdrender.Bool(false)}

	f.p.RenderString(ctx, "# Doc", noCache)
	before := f.store.Stats().EntryCount
	res := f.p.RenderString(ctx, "# Doc", noCache)

	if res.Cached {
		t.Error("render with cache disabled reported cached")
	}
	if after := f.store.Stats().EntryCount; after != before {
		t.Errorf("EntryCount = %d, want %d", after, before)
	}
}

// ---------------------------------------------------------------------------
// TestRender_Guards - Null content and size guard
// ---------------------------------------------------------------------------

func TestRender_NilContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	res := f.p.Render(context.Background(), nil, nil)

	if res.Success {
		t.Fatal("nil content should fail")
	}
	if res.ErrorType != mdrender.EmptyContent {
		t.Errorf("ErrorType = %q, want %q", res.ErrorType, mdrender.EmptyContent)
	}
	if !errors.Is(res.Err(), mdrender.ErrEmptyContent) {
		t.Errorf("Err() = %v, want ErrEmptyContent", res.Err())
	}
	if res.Tier != mdrender.TierErrorHandler {
		t.Errorf("Tier = %q, want %q", res.Tier, mdrender.TierErrorHandler)
	}
}

func TestRender_EmptyStringRenders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	empty := ""
	res := f.p.Render(context.Background(), &empty, nil)

	if !res.Success {
		t.Fatalf("empty content should render: %s", res.ErrorMessage)
	}
}

func TestRender_SizeGuard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	ctx := context.Background()
	limit := &mdrender.Overrides{MaxContentLength: mdrender.Int(8)}

	before := f.store.Stats()
	res := f.p.RenderString(ctx, "# far too long", limit)
	after := f.store.Stats()

	if res.Success || res.ErrorType != mdrender.ContentTooLarge {
		t.Fatalf("result = %+v, want ContentTooLarge", res)
	}
	if !errors.Is(res.Err(), mdrender.ErrContentTooLarge) {
		t.Errorf("Err() = %v, want ErrContentTooLarge", res.Err())
	}
	if after.EntryCount != before.EntryCount {
		t.Errorf("EntryCount = %d, want %d", after.EntryCount, before.EntryCount)
	}
	if after.HitCount+after.MissCount != before.HitCount+before.MissCount {
		t.Error("size guard touched the cache")
	}
	if f.p.Resolution() != nil {
		t.Error("size guard should not trigger backend resolution")
	}

	// Exactly at the limit passes.
	if res := f.p.RenderString(ctx, "12345678", limit); !res.Success {
		t.Errorf("content at limit failed: %s", res.ErrorMessage)
	}

	// The limit counts bytes: five two-byte runes exceed eight.
	if res := f.p.RenderString(ctx, "ééééé", limit); res.ErrorType != mdrender.ContentTooLarge {
		t.Errorf("ErrorType = %q for 10 bytes, want ContentTooLarge", res.ErrorType)
	}
}

// ---------------------------------------------------------------------------
// TestRender_Cascade - Fallback monotonicity and terminal failure
// ---------------------------------------------------------------------------

func TestRender_IncompletePrimaryFallsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubBackend{render: marker("plain")}) // no render_zoom
	res := f.p.RenderString(context.Background(), "# Title\n\nBody", nil)

	if !res.Success {
		t.Fatalf("Render() failed: %s", res.ErrorMessage)
	}
	if res.Tier != mdrender.TierSecondaryLibrary {
		t.Errorf("Tier = %q, want %q", res.Tier, mdrender.TierSecondaryLibrary)
	}
	if !strings.Contains(res.HTML, `<h1 id="title">Title</h1>`) {
		t.Errorf("secondary HTML missing heading:\n%s", res.HTML)
	}

	d := f.p.Resolution()
	if d == nil || d.Success || d.Code != backend.CodeMissingCapabilities {
		t.Errorf("Resolution() = %+v, want MissingCapabilities failure", d)
	}
}

func TestRender_TierFaults(t *testing.T) {
	t.Parallel()

	panicking := func(string, backend.RenderParams) (string, error) { panic("backend exploded") }
	failing := func(string, backend.RenderParams) (string, error) { return "", errors.New("backend error") }
	empty := func(string, backend.RenderParams) (string, error) { return "", nil }

	tests := []struct {
		name      string
		render    backend.RenderFunc
		secondary mdrender.SecondaryRenderer
		wantTier  mdrender.Tier
		wantCats  map[errreport.Category]int
	}{
		{
			name:     "primary panic falls to secondary",
			render:   panicking,
			wantTier: mdrender.TierSecondaryLibrary,
			wantCats: map[errreport.Category]int{errreport.CategoryBackend: 1},
		},
		{
			name:     "primary error falls to secondary",
			render:   failing,
			wantTier: mdrender.TierSecondaryLibrary,
			wantCats: map[errreport.Category]int{errreport.CategoryBackend: 1},
		},
		{
			name:     "primary empty output falls to secondary",
			render:   empty,
			wantTier: mdrender.TierSecondaryLibrary,
			wantCats: map[errreport.Category]int{errreport.CategoryBackend: 1},
		},
		{
			name:      "both failing falls to text",
			render:    failing,
			secondary: failingSecondary,
			wantTier:  mdrender.TierTextFallback,
			wantCats:  map[errreport.Category]int{errreport.CategoryBackend: 1, errreport.CategoryRender: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []mdrender.Option
			if tt.secondary != nil {
				opts = append(opts, mdrender.WithSecondaryRenderer(tt.secondary))
			}
			f := newFixture(t, &stubBackend{render: tt.render, zoom: tt.render}, opts...)

			res := f.p.RenderString(context.Background(), "# x", nil)
			if !res.Success {
				t.Fatalf("Render() failed: %s", res.ErrorMessage)
			}
			if res.Tier != tt.wantTier {
				t.Errorf("Tier = %q, want %q", res.Tier, tt.wantTier)
			}

			counts := f.reporter.Counts()
			for cat, want := range tt.wantCats {
				if counts[cat] != want {
					t.Errorf("reported %s = %d, want %d", cat, counts[cat], want)
				}
			}
			for _, info := range f.reporter.History() {
				if info.Strategy != errreport.Fallback {
					t.Errorf("Strategy = %q, want %q", info.Strategy, errreport.Fallback)
				}
			}
		})
	}
}

func TestRender_TerminalFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend(),
		mdrender.WithBackendSource(backend.StaticSource{}), // primary unavailable
		mdrender.WithSecondaryRenderer(failingSecondary),
	)

	res := f.p.RenderString(context.Background(), "# x", &mdrender.Overrides{FallbackToText: mdrender.Bool(false)})

	if res.Success {
		t.Fatal("Render() should fail with every tier unavailable")
	}
	if res.ErrorType != mdrender.AllRenderersFailed {
		t.Errorf("ErrorType = %q, want %q", res.ErrorType, mdrender.AllRenderersFailed)
	}
	if !errors.Is(res.Err(), mdrender.ErrAllRenderersFailed) {
		t.Errorf("Err() = %v, want ErrAllRenderersFailed", res.Err())
	}
	if res.Tier != mdrender.TierErrorHandler {
		t.Errorf("Tier = %q, want %q", res.Tier, mdrender.TierErrorHandler)
	}
	if !strings.Contains(res.ErrorMessage, "secondary unavailable") {
		t.Errorf("ErrorMessage = %q, want tier errors", res.ErrorMessage)
	}
}

func TestRender_NoRendererAvailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend(), mdrender.WithSecondaryRenderer(nil))
	res := f.p.RenderString(context.Background(), "# x", &mdrender.Overrides{
		UseDynamicBackend: mdrender.Bool(false),
		FallbackToText:    mdrender.Bool(false),
	})

	if res.ErrorType != mdrender.AllRenderersFailed {
		t.Errorf("ErrorType = %q, want %q", res.ErrorType, mdrender.AllRenderersFailed)
	}
	if f.p.Resolution() != nil {
		t.Error("UseDynamicBackend=false should not resolve the backend")
	}
}

func TestRender_TextFallbackEscapes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend(), mdrender.WithSecondaryRenderer(nil))
	res := f.p.RenderString(context.Background(), "<script>alert(1)</script>", &mdrender.Overrides{
		UseDynamicBackend: mdrender.Bool(false),
	})

	if !res.Success || res.Tier != mdrender.TierTextFallback {
		t.Fatalf("result = %+v, want text fallback success", res)
	}
	if !strings.Contains(res.HTML, "&lt;script&gt;") {
		t.Errorf("HTML should contain escaped tag: %s", res.HTML)
	}
	if strings.Contains(res.HTML, "<script>") {
		t.Errorf("HTML must not contain a raw script tag: %s", res.HTML)
	}
}

// ---------------------------------------------------------------------------
// TestResolution - Lazy resolution lifecycle
// ---------------------------------------------------------------------------

func TestResolution_LazyAndShared(t *testing.T) {
	t.Parallel()

	sb := completeBackend()
	f := newFixture(t, sb)

	if f.p.Resolution() != nil {
		t.Fatal("Resolution() before any render should be nil")
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.p.RenderString(context.Background(), strings.Repeat("x", i+1), nil)
		}()
	}
	wg.Wait()

	if got := sb.loads.Load(); got != 1 {
		t.Errorf("backend loaded %d times, want 1", got)
	}
	d := f.p.Resolution()
	if d == nil || !d.Success {
		t.Fatalf("Resolution() = %+v, want success", d)
	}
	d.Capabilities = nil
	if f.p.Resolution().Capabilities == nil {
		t.Error("Resolution() should return a copy")
	}
}

func TestResolution_Reconfigure(t *testing.T) {
	t.Parallel()

	sb := completeBackend()
	f := newFixture(t, sb)
	ctx := context.Background()

	f.p.RenderString(ctx, "# one", nil)
	if err := f.p.Reconfigure(); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if f.p.Resolution() != nil {
		t.Error("Reconfigure() should forget the resolution")
	}

	f.p.RenderString(ctx, "# two", nil)
	if got := sb.loads.Load(); got != 2 {
		t.Errorf("backend loaded %d times, want 2", got)
	}
}

func TestResolution_FallbackBackend(t *testing.T) {
	t.Parallel()

	legacy := &stubBackend{render: marker("legacy")}
	reg := backend.NewRegistry[backend.Entry]()
	entry, err := backend.NewEntry("legacy", "0.9.0", legacy.load)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	_ = reg.Add("legacy", entry)

	p, err := mdrender.New(
		mdrender.WithRegistry(reg),
		mdrender.WithBackendBaseDir(t.TempDir()),
		mdrender.WithBackendSource(backend.StaticSource{
			"primary": {SearchPath: "does-not-exist"},
		}),
		mdrender.WithFallbacks("legacy"),
		mdrender.WithLogger(zerolog.Nop()),
		mdrender.WithReporter(errreport.Nop{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	d := p.Resolve(context.Background())
	if !d.Success || !d.UsedFallback {
		t.Fatalf("Resolve() = %+v, want fallback success", d)
	}
	if len(d.Capabilities) != 0 {
		t.Errorf("fallback Capabilities = %v, want empty", d.Capabilities.Names())
	}

	// A fallback resolution exposes no capabilities, so tier 1 is skipped.
	res := p.RenderString(context.Background(), "# x", nil)
	if res.Tier != mdrender.TierSecondaryLibrary {
		t.Errorf("Tier = %q, want %q", res.Tier, mdrender.TierSecondaryLibrary)
	}
}

func TestResolution_DiagnosticsExport(t *testing.T) {
	t.Parallel()

	sink := diag.NewStore("mem://localhost/mdrender-pipeline-test")
	f := newFixture(t, completeBackend(), mdrender.WithDiagnostics(sink))

	f.p.Resolve(context.Background())

	var snap mdrender.ResolutionSnapshot
	if err := sink.Read(context.Background(), "resolution-primary", &snap); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !snap.Success || snap.Name != "primary" {
		t.Errorf("snapshot = %+v, want successful primary", snap)
	}
	if len(snap.CapabilityNames) != 2 {
		t.Errorf("CapabilityNames = %v, want render and render_zoom", snap.CapabilityNames)
	}
}

// ---------------------------------------------------------------------------
// TestBackground - Warmup and Prerender
// ---------------------------------------------------------------------------

func TestWarmup(t *testing.T) {
	t.Parallel()

	sb := completeBackend()
	f := newFixture(t, sb)

	f.p.Warmup(context.Background())
	if err := f.p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if d := f.p.Resolution(); d == nil || !d.Success {
		t.Errorf("Resolution() after Warmup = %+v, want success", d)
	}

	// Background work after Close is dropped.
	f.p.Warmup(context.Background())
}

func TestPrerender(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend(), mdrender.WithPrerenderLimit(2))
	docs := []string{"# a", "# b", "# c"}

	f.p.Prerender(context.Background(), docs, nil)
	if err := f.p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, doc := range docs {
		if res := f.p.RenderString(context.Background(), doc, nil); !res.Cached {
			t.Errorf("%q not prerendered", doc)
		}
	}
}

// ---------------------------------------------------------------------------
// TestRenderSource - File-backed rendering
// ---------------------------------------------------------------------------

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRenderSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "# From file\n")
	f := newFixture(t, completeBackend(), mdrender.WithSourceDir(dir))
	ctx := context.Background()

	res := f.p.RenderSource(ctx, "doc.md", nil)
	if !res.Success {
		t.Fatalf("RenderSource() failed: %s", res.ErrorMessage)
	}
	if res.Source == nil || res.Source.Path != path {
		t.Fatalf("Source = %+v, want path %q", res.Source, path)
	}
	if res.Source.Encoding != "utf-8" {
		t.Errorf("Encoding = %q, want utf-8", res.Source.Encoding)
	}
	if res.Source.Size != int64(len("# From file\n")) {
		t.Errorf("Size = %d", res.Source.Size)
	}

	if !f.p.RenderSource(ctx, "doc.md", nil).Cached {
		t.Error("second RenderSource should be cached")
	}
	if n := f.p.InvalidatePath(path); n != 1 {
		t.Errorf("InvalidatePath() = %d, want 1", n)
	}
	if f.p.RenderSource(ctx, "doc.md", nil).Cached {
		t.Error("RenderSource after InvalidatePath should not be cached")
	}
}

func TestRenderSource_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDoc(t, dir, "big.md", strings.Repeat("x", 64))
	f := newFixture(t, completeBackend(), mdrender.WithSourceDir(dir))

	tests := []struct {
		name      string
		locator   string
		overrides *mdrender.Overrides
		wantType  mdrender.ErrorType
		wantErr   error
	}{
		{
			name:     "missing file",
			locator:  "missing.md",
			wantType: mdrender.FileNotFound,
			wantErr:  mdrender.ErrFileNotFound,
		},
		{
			name:     "directory",
			locator:  ".",
			wantType: mdrender.NotAFile,
			wantErr:  mdrender.ErrNotAFile,
		},
		{
			name:      "over the content limit",
			locator:   "big.md",
			overrides: &mdrender.Overrides{MaxContentLength: mdrender.Int(10)},
			wantType:  mdrender.FileTooLarge,
			wantErr:   mdrender.ErrFileTooLarge,
		},
		{
			name:     "empty locator",
			locator:  "",
			wantType: mdrender.InvalidPath,
			wantErr:  mdrender.ErrInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := f.p.RenderSource(context.Background(), tt.locator, tt.overrides)
			if res.Success {
				t.Fatal("RenderSource() should fail")
			}
			if res.ErrorType != tt.wantType {
				t.Errorf("ErrorType = %q, want %q", res.ErrorType, tt.wantType)
			}
			if !errors.Is(res.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", res.Err(), tt.wantErr)
			}
		})
	}
}

func TestRenderSource_PathRewrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", "![diagram](img/arch.png)\n\n[notes](notes.md)\n")
	f := newFixture(t, completeBackend(),
		mdrender.WithSourceDir(dir),
		mdrender.WithPathRewrite(true),
	)
	off := &mdrender.Overrides{UseDynamicBackend: mdrender.Bool(false)}

	res := f.p.RenderSource(context.Background(), "doc.md", off)
	if !res.Success {
		t.Fatalf("RenderSource() failed: %s", res.ErrorMessage)
	}
	want := "file://" + filepath.ToSlash(filepath.Join(dir, "img", "arch.png"))
	if !strings.Contains(res.HTML, want) {
		t.Errorf("HTML missing rewritten image %q:\n%s", want, res.HTML)
	}

	// The cached entry keeps relative paths; rewriting happens per call.
	plain := f.p.RenderString(context.Background(), "![diagram](img/arch.png)\n\n[notes](notes.md)\n", off)
	if !plain.Cached || strings.Contains(plain.HTML, "file://") {
		t.Errorf("cached HTML should be location independent (cached=%v)", plain.Cached)
	}
}

func TestRenderSource_WatchDropsRemovedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeDoc(t, dir, "gone.md", "# soon gone\n")
	f := newFixture(t, completeBackend(),
		mdrender.WithSourceDir(dir),
		mdrender.WithWatch(true),
	)

	if res := f.p.RenderSource(context.Background(), "gone.md", nil); !res.Success {
		t.Fatalf("RenderSource() failed: %s", res.ErrorMessage)
	}
	if got := f.p.WatchedPaths(); len(got) != 1 || got[0] != path {
		t.Fatalf("WatchedPaths() = %v, want [%s]", got, path)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(f.p.WatchedPaths()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("WatchedPaths() = %v, want empty after removal", f.p.WatchedPaths())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatchedPaths_WithoutWatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, completeBackend())
	if got := f.p.WatchedPaths(); got != nil {
		t.Errorf("WatchedPaths() = %v, want nil", got)
	}
}

func TestRenderSource_WatchEvicts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "# v1\n")
	f := newFixture(t, completeBackend(),
		mdrender.WithSourceDir(dir),
		mdrender.WithWatch(true),
	)

	if res := f.p.RenderSource(context.Background(), "doc.md", nil); !res.Success {
		t.Fatalf("RenderSource() failed: %s", res.ErrorMessage)
	}
	before := f.store.Stats().EntryCount

	writeDoc(t, dir, "doc.md", "# v2\n")

	deadline := time.Now().Add(5 * time.Second)
	for f.store.Stats().EntryCount >= before {
		if time.Now().After(deadline) {
			t.Fatalf("cache entry for %s not evicted after change", path)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// TestWithLogger - Injected logger reaches every component
// ---------------------------------------------------------------------------

func TestWithLogger_ReachesResolverAndBackgroundTasks(t *testing.T) {
	t.Parallel()

	var logs logBuffer
	f := newFixture(t, completeBackend(), mdrender.WithLogger(zerolog.New(&logs)))

	if d := f.p.Resolve(context.Background()); !d.Success {
		t.Fatalf("Resolve() failed: %s", d.Message)
	}
	f.p.Warmup(context.Background())
	if err := f.p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out := logs.String()
	for _, want := range []string{
		`"component":"resolver"`,
		`"message":"backend resolution"`,
		`"operation":"warmup"`,
		`"message":"Operation completed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
}
