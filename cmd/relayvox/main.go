// Command relayvox is the main entry point for the relayvox speech relay
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/relayvox/internal/app"
	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/internal/config"
	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/pkg/audio"
	discordaudio "github.com/MrWong99/relayvox/pkg/audio/discord"
	"github.com/MrWong99/relayvox/pkg/audio/mic"
	"github.com/MrWong99/relayvox/pkg/audio/speaker"
	"github.com/MrWong99/relayvox/pkg/audio/wavdir"
	"github.com/MrWong99/relayvox/pkg/audio/wavfile"
	"github.com/MrWong99/relayvox/pkg/provider/llm"
	"github.com/MrWong99/relayvox/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/relayvox/pkg/provider/llm/openai"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	sttazure "github.com/MrWong99/relayvox/pkg/provider/stt/azure"
	"github.com/MrWong99/relayvox/pkg/provider/stt/deepgram"
	"github.com/MrWong99/relayvox/pkg/provider/stt/whisper"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	translateazure "github.com/MrWong99/relayvox/pkg/provider/translate/azure"
	llmtranslate "github.com/MrWong99/relayvox/pkg/provider/translate/llm"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	ttsazure "github.com/MrWong99/relayvox/pkg/provider/tts/azure"
	"github.com/MrWong99/relayvox/pkg/provider/tts/coqui"
	"github.com/MrWong99/relayvox/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
	"github.com/MrWong99/relayvox/pkg/provider/vad/energy"
	"github.com/MrWong99/relayvox/pkg/provider/vad/silero"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", config.DefaultPath, "path to the YAML configuration file")
	populateDir := flag.String("populate", "", "fetch the live language and voice catalog into `dir` and exit")
	sayText := flag.String("say", "", "synthesize `text` with the configured voice and exit (needs -out)")
	sayOut := flag.String("out", "output.wav", "WAV file written by -say")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "relayvox: config file %q not found, using defaults (see configs/relayvox.example.yaml)\n", *configPath)
			cfg = config.Defaults()
		} else {
			fmt.Fprintf(os.Stderr, "relayvox: %v\n", err)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Server.LogLevel.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("relayvox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.Setup(ctx, observe.WithVersion(version))
	if err != nil {
		slog.Error("failed to set up telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	w := &wiring{ctx: ctx, cfg: cfg}
	reg := config.NewRegistry()
	w.register(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := w.build(reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		w.close()
		return 1
	}

	application, err := app.New(ctx, cfg, providers,
		app.WithLogger(logger),
		app.WithLevelVar(levelVar),
		app.WithConfigPath(*configPath),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		w.close()
		return 1
	}

	// ── One-shot commands ─────────────────────────────────────────────────────
	if *populateDir != "" || *sayText != "" {
		code := oneShot(ctx, application, *populateDir, *sayText, *sayOut)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
		return code
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// oneShot runs -populate and -say. Both may be given; populate runs first.
func oneShot(ctx context.Context, a *app.App, dir, text, out string) int {
	if dir != "" {
		d, err := a.Populate(ctx, dir)
		if err != nil {
			slog.Error("populate failed", "err", err)
			return 1
		}
		fmt.Printf("Wrote %d languages and %d voice locales to %s\n", len(d.Languages), len(d.Voices), dir)
	}
	if text != "" {
		if err := a.Catalog().Load(ctx); err != nil {
			slog.Warn("catalog load failed, using embedded languages", "err", err)
		}
		if err := a.Say(ctx, text, out); err != nil {
			slog.Error("synthesis failed", "err", err)
			return 1
		}
		fmt.Printf("Wrote %s\n", out)
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider kinds to the implementations that ship with
// relayvox. Used for startup logging.
var builtinProviders = map[string][]string{
	"audio":     {"microphone", "wavfile", "discord"},
	"playback":  {"speaker", "wavdir", "discord"},
	"vad":       {"energy", "silero"},
	"stt":       {"azure", "whisper", "whisper-native", "deepgram"},
	"translate": {"azure", "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":       {"azure", "elevenlabs", "coqui"},
}

// anyLLMBackends share the same pattern: optional APIKey + optional BaseURL.
var anyLLMBackends = []string{
	"anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// wiring holds what provider factories share: the config, resources that
// must be released on shutdown, and the Discord voice connection used by
// both the audio and the playback side.
type wiring struct {
	ctx     context.Context
	cfg     *config.Config
	closers []func() error

	discord *discordaudio.Conn
}

func (w *wiring) close() {
	for _, c := range w.closers {
		if err := c(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
}

// register wires all built-in provider factories into reg.
func (w *wiring) register(reg *config.Registry) {
	rate := w.cfg.Segmentation.SampleRate

	// ── Audio input ───────────────────────────────────────────────────────────

	reg.RegisterAudio("microphone", func(entry config.ProviderEntry) (audio.Input, error) {
		opts := []mic.Option{mic.WithSampleRate(rate)}
		if name := entry.OptString("device"); name != "" {
			opts = append(opts, mic.WithDeviceName(name))
		}
		if ms, ok := entry.OptInt("period_ms"); ok {
			opts = append(opts, mic.WithPeriod(ms))
		}
		d := mic.New(opts...)
		w.closers = append(w.closers, d.Close)
		return d, nil
	})

	reg.RegisterAudio("wavfile", func(entry config.ProviderEntry) (audio.Input, error) {
		opts := []wavfile.Option{wavfile.WithSampleRate(rate)}
		if rt, ok := entry.OptBool("realtime"); ok {
			opts = append(opts, wavfile.WithRealtime(rt))
		}
		if d, ok := entry.OptDuration("trailing_silence"); ok {
			opts = append(opts, wavfile.WithTrailingSilence(d))
		}
		return wavfile.New(entry.OptString("path"), opts...)
	})

	reg.RegisterAudio("discord", func(entry config.ProviderEntry) (audio.Input, error) {
		return w.discordConn(entry)
	})

	// ── Playback ──────────────────────────────────────────────────────────────

	reg.RegisterPlayback("speaker", func(entry config.ProviderEntry) (audio.Output, error) {
		var opts []speaker.Option
		if r, ok := entry.OptInt("sample_rate"); ok {
			opts = append(opts, speaker.WithSampleRate(r))
		}
		if d, ok := entry.OptDuration("buffer"); ok {
			opts = append(opts, speaker.WithBufferSize(d))
		}
		return speaker.New(opts...), nil
	})

	reg.RegisterPlayback("wavdir", func(entry config.ProviderEntry) (audio.Output, error) {
		prefix := entry.OptString("prefix")
		if prefix == "" {
			prefix = "utterance"
		}
		return wavdir.New(entry.OptString("dir"), prefix)
	})

	reg.RegisterPlayback("discord", func(entry config.ProviderEntry) (audio.Output, error) {
		return w.discordConn(entry)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Engine, error) {
		var opts []energy.Option
		if f, ok := entry.OptFloat("floor"); ok {
			opts = append(opts, energy.WithFloor(f))
		}
		if c, ok := entry.OptFloat("ceiling"); ok {
			opts = append(opts, energy.WithCeiling(c))
		}
		if a, ok := entry.OptFloat("smoothing"); ok {
			opts = append(opts, energy.WithSmoothing(a))
		}
		return energy.New(opts...)
	})

	reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Engine, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []silero.Option
		if lib := entry.OptString("library_path"); lib != "" {
			opts = append(opts, silero.WithLibraryPath(lib))
		}
		if n, ok := entry.OptInt("threads"); ok {
			opts = append(opts, silero.WithIntraOpThreads(n))
		}
		return silero.New(modelPath, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("azure", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttazure.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttazure.WithEndpoint(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, sttazure.WithLanguage(lang))
		}
		if mode := entry.OptString("profanity"); mode != "" {
			opts = append(opts, sttazure.WithProfanity(mode))
		}
		return sttazure.New(entry.APIKey, w.region(entry), opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n, ok := entry.OptInt("threads"); ok && n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		p, err := whisper.NewNative(modelPath, opts...)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, p.Close)
		return p, nil
	})

	// ── LLM backends for translation ──────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if d, ok := entry.OptDuration("timeout"); ok {
			opts = append(opts, oaillm.WithTimeout(d))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyLLMBackends {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── Translate ─────────────────────────────────────────────────────────────

	reg.RegisterTranslate("azure", func(entry config.ProviderEntry) (translate.Provider, error) {
		return w.azureTranslator(entry)
	})

	names := languageNames()
	for _, providerName := range append([]string{"openai"}, anyLLMBackends...) {
		reg.RegisterTranslate(providerName, func(entry config.ProviderEntry) (translate.Provider, error) {
			backend, err := reg.CreateLLM(entry)
			if err != nil {
				return nil, err
			}
			opts := []llmtranslate.Option{llmtranslate.WithLanguageNames(names)}
			if t, ok := entry.OptFloat("temperature"); ok {
				opts = append(opts, llmtranslate.WithTemperature(t))
			}
			if n, ok := entry.OptInt("max_tokens"); ok {
				opts = append(opts, llmtranslate.WithMaxTokens(n))
			}
			return llmtranslate.New(backend, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("azure", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsazure.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsazure.WithEndpoints(entry.BaseURL, entry.OptString("voices_url")))
		}
		return ttsazure.New(entry.APIKey, w.region(entry), opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if d, ok := entry.OptDuration("timeout"); ok {
			opts = append(opts, coqui.WithTimeout(d))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// region returns the entry's Azure region option, falling back to the
// catalog region.
func (w *wiring) region(entry config.ProviderEntry) string {
	if r := entry.OptString("region"); r != "" {
		return r
	}
	return w.cfg.Catalog.Region
}

func (w *wiring) azureTranslator(entry config.ProviderEntry) (*translateazure.Provider, error) {
	var opts []translateazure.Option
	if entry.BaseURL != "" {
		opts = append(opts, translateazure.WithEndpoint(entry.BaseURL))
	}
	if r := entry.OptString("region"); r != "" {
		opts = append(opts, translateazure.WithRegion(r))
	}
	return translateazure.New(entry.APIKey, opts...)
}

// discordConn opens the bot session and joins the voice channel named in
// entry on first use. Audio and playback share the connection.
func (w *wiring) discordConn(entry config.ProviderEntry) (*discordaudio.Conn, error) {
	if w.discord != nil {
		return w.discord, nil
	}
	token := entry.APIKey
	if token == "" {
		token = entry.OptString("token")
	}
	if token == "" {
		return nil, errors.New("discord: token must not be empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildVoiceStates
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	joinCtx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()
	conn, err := discordaudio.Join(joinCtx, session, entry.OptString("guild_id"), entry.OptString("channel_id"),
		discordaudio.WithSampleRate(w.cfg.Segmentation.SampleRate))
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	w.discord = conn
	w.closers = append(w.closers, conn.Close, session.Close)
	slog.Info("discord voice connected", "guild_id", entry.OptString("guild_id"), "channel_id", entry.OptString("channel_id"))
	return conn, nil
}

// build instantiates all providers named in cfg using the registry and
// returns them in an [app.Providers] struct for the application to consume.
func (w *wiring) build(reg *config.Registry) (*app.Providers, error) {
	pc := w.cfg.Providers
	ps := &app.Providers{}
	var err error

	if ps.Audio, err = reg.CreateAudio(pc.Audio); err != nil {
		return nil, fmt.Errorf("create audio provider %q: %w", pc.Audio.Name, err)
	}
	slog.Info("provider created", "kind", "audio", "name", pc.Audio.Name)

	if ps.Playback, err = reg.CreatePlayback(pc.Playback); err != nil {
		return nil, fmt.Errorf("create playback provider %q: %w", pc.Playback.Name, err)
	}
	slog.Info("provider created", "kind", "playback", "name", pc.Playback.Name)

	if ps.VAD, err = reg.CreateVAD(pc.VAD); err != nil {
		return nil, fmt.Errorf("create vad provider %q: %w", pc.VAD.Name, err)
	}
	slog.Info("provider created", "kind", "vad", "name", pc.VAD.Name)

	if ps.STT, err = chain(pc.STT, "stt", reg.CreateSTT); err != nil {
		return nil, err
	}
	if ps.Translate, err = chain(pc.Translate, "translate", reg.CreateTranslate); err != nil {
		return nil, err
	}
	if ps.TTS, err = chain(pc.TTS, "tts", reg.CreateTTS); err != nil {
		return nil, err
	}

	// The Azure translator doubles as the live language list for the
	// catalog; the primary TTS provider supplies the voices.
	if w.cfg.Catalog.Refresh {
		ps.Languages = w.languageList(pc.Translate)
		if w.cfg.Catalog.SpeechKey != "" {
			voices, err := ttsazure.New(w.cfg.Catalog.SpeechKey, w.cfg.Catalog.Region)
			if err != nil {
				slog.Warn("catalog voice source unavailable", "err", err)
			} else {
				ps.Voices = voices
			}
		}
	}

	ps.Closers = w.closers
	return ps, nil
}

// chain creates the primary provider of entry followed by its fallbacks.
func chain[T any](entry config.ProviderEntry, kind string, create func(config.ProviderEntry) (T, error)) ([]app.Named[T], error) {
	var out []app.Named[T]
	for i, e := range append([]config.ProviderEntry{entry}, entry.Fallbacks...) {
		p, err := create(e)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, e.Name, err)
		}
		out = append(out, app.Named[T]{Name: e.Name, Value: p})
		slog.Info("provider created", "kind", kind, "name", e.Name, "fallback", i > 0)
	}
	return out, nil
}

// languageList returns the Azure translator configured among the translate
// primary and fallbacks, or a keyless one (the language list needs no key).
func (w *wiring) languageList(entry config.ProviderEntry) catalog.LanguageSource {
	for _, e := range append([]config.ProviderEntry{entry}, entry.Fallbacks...) {
		if e.Name != "azure" {
			continue
		}
		if p, err := w.azureTranslator(e); err == nil {
			return p
		}
	}
	return translateazure.NewLanguageList()
}

// languageNames maps translator codes to English names for LLM prompts,
// using the embedded catalog.
func languageNames() func(string) string {
	langs := catalog.Fallback().Languages
	return func(code string) string {
		if l, ok := langs[code]; ok && l.Name != "" {
			return l.Name
		}
		return code
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         relayvox — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Audio", cfg.Providers.Audio.Name, "")
	printProvider("Playback", cfg.Providers.Playback.Name, "")
	printProvider("VAD", cfg.Providers.VAD.Name, cfg.Providers.VAD.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Translate", cfg.Providers.Translate.Name, cfg.Providers.Translate.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Languages       : %-19s ║\n", cfg.Pipeline.Source+" → "+cfg.Pipeline.Target)
	fmt.Printf("║  Silence         : %-19s ║\n", fmt.Sprintf("%.1fs", cfg.Pipeline.SilenceSeconds))
	if cfg.Journal.PostgresDSN != "" {
		fmt.Printf("║  Journal         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Journal         : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
