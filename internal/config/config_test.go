package config_test

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/relayvox/internal/config"
	"github.com/MrWong99/relayvox/pkg/audio"
	audiomock "github.com/MrWong99/relayvox/pkg/audio/mock"
	"github.com/MrWong99/relayvox/pkg/provider/llm"
	llmmock "github.com/MrWong99/relayvox/pkg/provider/llm/mock"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	sttmock "github.com/MrWong99/relayvox/pkg/provider/stt/mock"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	translatemock "github.com/MrWong99/relayvox/pkg/provider/translate/mock"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/relayvox/pkg/provider/tts/mock"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
	vadmock "github.com/MrWong99/relayvox/pkg/provider/vad/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug

pipeline:
  source: de
  target: es
  voice: es-ES-ElviraNeural
  silence_seconds: 1.5
  autostart: true

segmentation:
  sample_rate: 16000
  frame_size: 512
  threshold: 0.5
  min_chunk_seconds: 0.25

catalog:
  refresh: true
  region: westeurope
  speech_key: sk

journal:
  postgres_dsn: "postgres://localhost/relayvox"

providers:
  audio:
    name: wavfile
    options:
      path: testdata/speech.wav
      realtime: true
  playback:
    name: wavdir
    options:
      dir: out
  vad:
    name: energy
    options:
      floor: 0.01
  stt:
    name: azure
    api_key: speech-key
    options:
      region: westeurope
    fallbacks:
      - name: whisper
        base_url: http://localhost:8081
  translate:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: azure
    api_key: speech-key
    options:
      region: westeurope
`

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	want := config.PipelineConfig{Source: "de", Target: "es", Voice: "es-ES-ElviraNeural", SilenceSeconds: 1.5, Autostart: true}
	if cfg.Pipeline != want {
		t.Errorf("pipeline: got %+v, want %+v", cfg.Pipeline, want)
	}
	if got := cfg.Segmentation.MinChunk(); got != 250*time.Millisecond {
		t.Errorf("MinChunk: got %v", got)
	}
	if !cfg.Catalog.Refresh || cfg.Catalog.Region != "westeurope" {
		t.Errorf("catalog: got %+v", cfg.Catalog)
	}
	if cfg.Journal.PostgresDSN == "" {
		t.Error("journal.postgres_dsn is empty")
	}
	if got := cfg.Providers.Audio.OptString("path"); got != "testdata/speech.wav" {
		t.Errorf("audio path: got %q", got)
	}
	if b, ok := cfg.Providers.Audio.OptBool("realtime"); !ok || !b {
		t.Errorf("audio realtime: got %v, %v", b, ok)
	}
	if len(cfg.Providers.STT.Fallbacks) != 1 || cfg.Providers.STT.Fallbacks[0].Name != "whisper" {
		t.Errorf("stt fallbacks: got %+v", cfg.Providers.STT.Fallbacks)
	}
	if cfg.Providers.Translate.Model != "gpt-4o-mini" {
		t.Errorf("translate model: got %q", cfg.Providers.Translate.Model)
	}
}

func TestLoadFromReader_EmptyAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := config.Defaults()
	if cfg.Server != def.Server || cfg.Pipeline != def.Pipeline || cfg.Segmentation != def.Segmentation {
		t.Errorf("got %+v, want defaults %+v", cfg, def)
	}
	if cfg.Pipeline.Source != "en" || cfg.Pipeline.Target != "fr" || cfg.Pipeline.SilenceSeconds != 3.0 {
		t.Errorf("pipeline defaults: got %+v", cfg.Pipeline)
	}
	if cfg.Segmentation.SampleRate != 16000 || cfg.Segmentation.FrameSize != 512 || cfg.Segmentation.Threshold != 0.6 {
		t.Errorf("segmentation defaults: got %+v", cfg.Segmentation)
	}
	if cfg.Providers.Audio.Name != "microphone" || cfg.Providers.Playback.Name != "speaker" || cfg.Providers.VAD.Name != "energy" {
		t.Errorf("provider defaults: got %+v", cfg.Providers)
	}
	if cfg.Providers.STT.Name != "azure" || cfg.Providers.Translate.Name != "azure" || cfg.Providers.TTS.Name != "azure" {
		t.Errorf("provider defaults: got %+v", cfg.Providers)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		valid bool
		slog  slog.Level
	}{
		{config.LogDebug, true, slog.LevelDebug},
		{config.LogInfo, true, slog.LevelInfo},
		{config.LogWarn, true, slog.LevelWarn},
		{config.LogError, true, slog.LevelError},
		{"verbose", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			if got := tt.level.IsValid(); got != tt.valid {
				t.Errorf("IsValid: got %v, want %v", got, tt.valid)
			}
			if got := tt.level.SlogLevel(); got != tt.slog {
				t.Errorf("SlogLevel: got %v, want %v", got, tt.slog)
			}
		})
	}
}

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{
		"name":    "x",
		"int":     3,
		"float":   0.25,
		"flag":    true,
		"timeout": "1500ms",
		"seconds": 2,
		"bad":     []string{"a"},
		"baddur":  "soon",
	}}

	if got := e.OptString("name"); got != "x" {
		t.Errorf("OptString: got %q", got)
	}
	if got := e.OptString("int"); got != "" {
		t.Errorf("OptString on int: got %q", got)
	}
	if got, ok := e.OptInt("int"); !ok || got != 3 {
		t.Errorf("OptInt: got %d, %v", got, ok)
	}
	if got, ok := e.OptFloat("float"); !ok || got != 0.25 {
		t.Errorf("OptFloat: got %v, %v", got, ok)
	}
	if _, ok := e.OptFloat("bad"); ok {
		t.Error("OptFloat on slice should fail")
	}
	if got, ok := e.OptBool("flag"); !ok || !got {
		t.Errorf("OptBool: got %v, %v", got, ok)
	}
	if got, ok := e.OptDuration("timeout"); !ok || got != 1500*time.Millisecond {
		t.Errorf("OptDuration string: got %v, %v", got, ok)
	}
	if got, ok := e.OptDuration("seconds"); !ok || got != 2*time.Second {
		t.Errorf("OptDuration number: got %v, %v", got, ok)
	}
	if _, ok := e.OptDuration("baddur"); ok {
		t.Error("OptDuration on unparsable string should fail")
	}
	if _, ok := e.OptDuration("missing"); ok {
		t.Error("OptDuration on missing key should fail")
	}

	var empty config.ProviderEntry
	if empty.OptString("x") != "" {
		t.Error("nil options should yield empty string")
	}
}

func TestRegistry_CreateEachKind(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	reg.RegisterAudio("mock", func(config.ProviderEntry) (audio.Input, error) { return &audiomock.Input{}, nil })
	reg.RegisterPlayback("mock", func(config.ProviderEntry) (audio.Output, error) { return &audiomock.Output{}, nil })
	reg.RegisterVAD("mock", func(config.ProviderEntry) (vad.Engine, error) { return &vadmock.Engine{}, nil })
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	reg.RegisterTranslate("mock", func(config.ProviderEntry) (translate.Provider, error) { return &translatemock.Provider{}, nil })
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })

	entry := config.ProviderEntry{Name: "mock"}
	if _, err := reg.CreateAudio(entry); err != nil {
		t.Errorf("CreateAudio: %v", err)
	}
	if _, err := reg.CreatePlayback(entry); err != nil {
		t.Errorf("CreatePlayback: %v", err)
	}
	if _, err := reg.CreateVAD(entry); err != nil {
		t.Errorf("CreateVAD: %v", err)
	}
	if _, err := reg.CreateSTT(entry); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := reg.CreateTranslate(entry); err != nil {
		t.Errorf("CreateTranslate: %v", err)
	}
	if _, err := reg.CreateTTS(entry); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
	if _, err := reg.CreateLLM(entry); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}

	for _, kind := range []string{"audio", "playback", "vad", "stt", "translate", "tts", "llm"} {
		if got := reg.Names(kind); len(got) != 1 || got[0] != "mock" {
			t.Errorf("Names(%q): got %v", kind, got)
		}
	}
	if got := reg.Names("s2s"); got != nil {
		t.Errorf("Names(unknown): got %v", got)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("got %v, want ErrProviderNotRegistered", err)
	}
	if !strings.Contains(err.Error(), `stt/"nope"`) {
		t.Errorf("error should name kind and provider, got %v", err)
	}
}

func TestRegistry_FactoryReceivesEntryAndError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	var got config.ProviderEntry
	reg.RegisterTTS("azure", func(e config.ProviderEntry) (tts.Provider, error) {
		got = e
		return nil, boom
	})
	entry := config.ProviderEntry{Name: "azure", APIKey: "k", Options: map[string]any{"region": "eastus"}}
	if _, err := reg.CreateTTS(entry); !errors.Is(err, boom) {
		t.Fatalf("got %v, want factory error", err)
	}
	if got.APIKey != "k" || got.OptString("region") != "eastus" {
		t.Errorf("factory received %+v", got)
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	first := &translatemock.Provider{}
	second := &translatemock.Provider{}
	reg.RegisterTranslate("x", func(config.ProviderEntry) (translate.Provider, error) { return first, nil })
	reg.RegisterTranslate("x", func(config.ProviderEntry) (translate.Provider, error) { return second, nil })
	p, err := reg.CreateTranslate(config.ProviderEntry{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if p != second {
		t.Error("second registration should win")
	}
}
