package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/relayvox/internal/app"
	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/internal/config"
	"github.com/MrWong99/relayvox/internal/observe"
	audiomock "github.com/MrWong99/relayvox/pkg/audio/mock"
	journalmock "github.com/MrWong99/relayvox/pkg/journal/mock"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	sttmock "github.com/MrWong99/relayvox/pkg/provider/stt/mock"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	translateazure "github.com/MrWong99/relayvox/pkg/provider/translate/azure"
	translatemock "github.com/MrWong99/relayvox/pkg/provider/translate/mock"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/relayvox/pkg/provider/tts/mock"
	vadmock "github.com/MrWong99/relayvox/pkg/provider/vad/mock"
)

// testConfig returns the defaults with the listen address left to the test.
func testConfig() *config.Config {
	return config.Defaults()
}

// testProviders returns mock providers whose audio source blocks until closed.
func testProviders() (*app.Providers, *audiomock.Source) {
	src := audiomock.NewSource()
	return &app.Providers{
		Audio:     &audiomock.Input{Source: src},
		Playback:  &audiomock.Output{Sink: &audiomock.Sink{}},
		VAD:       &vadmock.Engine{},
		STT:       []app.Named[stt.Provider]{{Name: "azure", Value: &sttmock.Provider{}}},
		Translate: []app.Named[translate.Provider]{{Name: "azure", Value: &translatemock.Provider{Result: "bonjour"}}},
		TTS:       []app.Named[tts.Provider]{{Name: "azure", Value: &ttsmock.Provider{}}},
	}, src
}

func testOptions(t *testing.T) []app.Option {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return []app.Option{
		app.WithMetrics(m),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		app.WithCatalog(catalog.NewStatic(catalog.Fallback())),
		app.WithJournal(&journalmock.Recorder{}),
	}
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	providers, _ := testProviders()
	application, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application.Controller() == nil || application.Server() == nil {
		t.Fatal("New() left subsystems unset")
	}
	if application.Controller().IsRunning() {
		t.Error("pipeline running before Run")
	}
	if got := application.Server().Defaults(); got.Source != "en" || got.Target != "fr" || got.SilenceSeconds != 3 {
		t.Errorf("defaults = %+v", got)
	}
}

func TestNew_MissingProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		strip func(*app.Providers)
	}{
		{"audio", func(p *app.Providers) { p.Audio = nil }},
		{"playback", func(p *app.Providers) { p.Playback = nil }},
		{"vad", func(p *app.Providers) { p.VAD = nil }},
		{"stt", func(p *app.Providers) { p.STT = nil }},
		{"translate", func(p *app.Providers) { p.Translate = nil }},
		{"tts", func(p *app.Providers) { p.TTS = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			providers, _ := testProviders()
			tt.strip(providers)
			if _, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestNew_FallbacksAddReadinessChecks(t *testing.T) {
	t.Parallel()

	providers, _ := testProviders()
	providers.STT = append(providers.STT, app.Named[stt.Provider]{Name: "whisper", Value: &sttmock.Provider{}})
	providers.TTS = append(providers.TTS, app.Named[tts.Provider]{Name: "coqui", Value: &ttsmock.Provider{}})

	application, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"stt", "tts"} {
		if body.Checks[name] != "ok" {
			t.Errorf("check %q = %q, want ok", name, body.Checks[name])
		}
	}
	if _, ok := body.Checks["translate"]; ok {
		t.Error("translate has no fallbacks but got a breaker check")
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	providers, _ := testProviders()
	closed := 0
	providers.Closers = []func() error{func() error { closed++; return nil }}

	application, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
	if closed != 1 {
		t.Errorf("closer called %d times, want 1", closed)
	}
}

func TestApp_ShutdownDeadline(t *testing.T) {
	t.Parallel()

	providers, _ := testProviders()
	called := false
	providers.Closers = []func() error{func() error { called = true; return nil }}

	application, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := application.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() = %v, want context.Canceled", err)
	}
	if called {
		t.Error("closer ran after the deadline")
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Pipeline.Autostart = true
	providers, src := testProviders()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	application, err := app.New(context.Background(), cfg, providers,
		append(testOptions(t), app.WithListener(ln))...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("healthz not ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	for !application.Controller().IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("pipeline did not autostart")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if application.Controller().IsRunning() {
		t.Error("pipeline still running after Shutdown")
	}
	if !src.Closed() {
		t.Error("audio source not closed")
	}
}

func TestApp_Say(t *testing.T) {
	t.Parallel()

	providers, _ := testProviders()
	synth := &ttsmock.Provider{Chunks: [][]byte{{1, 0, 2, 0}, {3, 0}}}
	providers.TTS = []app.Named[tts.Provider]{{Name: "azure", Value: synth}}

	application, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := application.Say(context.Background(), "bonjour", path); err != nil {
		t.Fatalf("Say() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 44+6 {
		t.Errorf("wav size = %d, want %d", info.Size(), 44+6)
	}
	if len(synth.SynthesizeCalls) != 1 || synth.SynthesizeCalls[0].Voice.ID != "fr-FR-DeniseNeural" {
		t.Errorf("synthesize calls = %+v, want default French voice", synth.SynthesizeCalls)
	}
}

type fakeLanguages map[string]translateazure.LanguageInfo

func (f fakeLanguages) Languages(context.Context) (map[string]translateazure.LanguageInfo, error) {
	return f, nil
}

func TestApp_Populate(t *testing.T) {
	t.Parallel()

	providers, _ := testProviders()
	if _, err := mustApp(t, providers).Populate(context.Background(), t.TempDir()); !errors.Is(err, app.ErrNoLiveSources) {
		t.Errorf("Populate() without sources = %v, want ErrNoLiveSources", err)
	}

	providers, _ = testProviders()
	providers.Languages = fakeLanguages{"fr": {Name: "French", NativeName: "Français"}}
	providers.Voices = &ttsmock.Provider{Voices: []tts.VoiceProfile{
		{ID: "fr-FR-DeniseNeural", Locale: "fr-FR", Gender: "Female", Name: "Denise"},
	}}

	dir := t.TempDir()
	d, err := mustApp(t, providers).Populate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Populate() error: %v", err)
	}
	if len(d.Languages) != 1 || len(d.Voices["fr-FR"]) != 1 {
		t.Errorf("data = %+v", d)
	}
	for _, name := range []string{catalog.LanguagesFile, catalog.VoicesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func mustApp(t *testing.T, providers *app.Providers) *app.App {
	t.Helper()
	application, err := app.New(context.Background(), testConfig(), providers, testOptions(t)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return application
}
