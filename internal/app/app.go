// Package app wires all relayvox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the control API until the context ends, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithJournal,
// WithCatalog, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/MrWong99/relayvox/internal/api"
	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/internal/config"
	"github.com/MrWong99/relayvox/internal/health"
	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/internal/pipeline"
	"github.com/MrWong99/relayvox/internal/resilience"
	"github.com/MrWong99/relayvox/internal/segment"
	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/journal"
	"github.com/MrWong99/relayvox/pkg/journal/postgres"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// Named is a provider together with the config name it was created from.
type Named[T any] struct {
	Name  string
	Value T
}

// Providers holds the instantiated providers. Populated by main.go via the
// config registry.
type Providers struct {
	Audio    audio.Input
	Playback audio.Output
	VAD      vad.Engine

	// STT, Translate and TTS hold the primary first, followed by its
	// fallbacks in the order they are tried.
	STT       []Named[stt.Provider]
	Translate []Named[translate.Provider]
	TTS       []Named[tts.Provider]

	// Languages and Voices feed the live catalog fetch when catalog.refresh
	// is set. A nil Voices falls back to the primary TTS provider.
	Languages catalog.LanguageSource
	Voices    catalog.VoiceSource

	// Closers release provider resources (device contexts, voice
	// connections). They run during Shutdown.
	Closers []func() error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	providers  *Providers
	configPath string
	levelVar   *slog.LevelVar
	logger     *slog.Logger
	metrics    *observe.Metrics

	catalog    *catalog.Catalog
	journal    journal.Writer
	health     *health.Handler
	controller *pipeline.Controller
	tts        tts.Provider
	server     *api.Server
	watcher    *config.Watcher

	mu       sync.Mutex
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithJournal injects a journal writer instead of connecting to
// journal.postgres_dsn.
func WithJournal(w journal.Writer) Option {
	return func(a *App) { a.journal = w }
}

// WithCatalog injects a catalog instead of building one from config.
func WithCatalog(c *catalog.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithMetrics sets the metrics used by the pipeline, the fallbacks and the
// API. Default observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevelVar lets config reloads change the log level of the handler
// behind v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// WithConfigPath makes Run watch the config file and apply changes live.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithListener serves the API on ln instead of listening on
// server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New connects the journal store when one is configured. The catalog loads
// lazily; Run triggers the load in the background.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		closers:   append([]func() error(nil), providers.Closers...),
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.health = health.New()

	// ── 1. Journal ───────────────────────────────────────────────────────
	a.initJournal(ctx)

	// ── 2. Catalog ───────────────────────────────────────────────────────
	a.initCatalog()

	// ── 3. Pipeline ──────────────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	// ── 4. Control API ───────────────────────────────────────────────────
	a.server = api.New(a.controller, a.catalog,
		api.WithLogger(a.logger),
		api.WithHealth(a.health),
		api.WithMetrics(a.metrics),
		api.WithDefaults(runConfig(cfg.Pipeline)),
	)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initJournal connects the PostgreSQL journal when a DSN is configured and
// no writer was injected. An unreachable database disables the journal
// instead of failing startup.
func (a *App) initJournal(ctx context.Context) {
	if a.journal == nil && a.cfg.Journal.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.Journal.PostgresDSN)
		if err != nil {
			a.logger.Warn("journal disabled", "err", err)
			return
		}
		a.journal = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		a.logger.Info("journal connected")
	}
	if p, ok := a.journal.(health.Pinger); ok {
		a.health.Add(health.Ping("journal", p))
	}
}

// initCatalog builds the language catalog: the live fetcher when refresh is
// on, otherwise the populated JSON files, otherwise the embedded data.
func (a *App) initCatalog() {
	if a.catalog != nil {
		return
	}
	cc := a.cfg.Catalog
	opts := []catalog.Option{catalog.WithLogger(a.logger)}
	fetcher := a.fetcher()
	switch {
	case cc.Refresh && fetcher != nil:
		opts = append(opts, catalog.WithFetcher(fetcher))
	case cc.Refresh:
		a.logger.Warn("catalog refresh requested but no live sources are configured")
		fallthrough
	default:
		if cc.LanguagesFile != "" && cc.VoicesFile != "" {
			opts = append(opts, catalog.WithFiles(cc.LanguagesFile, cc.VoicesFile))
		}
	}
	a.catalog = catalog.New(opts...)
}

// fetcher returns the live catalog sources, or nil when there are none.
func (a *App) fetcher() *catalog.RemoteFetcher {
	p := a.providers
	voices := p.Voices
	if voices == nil && len(p.TTS) > 0 {
		voices = p.TTS[0].Value
	}
	if p.Languages == nil || voices == nil {
		return nil
	}
	return &catalog.RemoteFetcher{Languages: p.Languages, Voices: voices}
}

// initPipeline wraps providers with fallbacks where configured and builds
// the controller.
func (a *App) initPipeline() error {
	p := a.providers
	switch {
	case p.Audio == nil:
		return errors.New("no audio input provider")
	case p.Playback == nil:
		return errors.New("no playback provider")
	case p.VAD == nil:
		return errors.New("no vad provider")
	case len(p.STT) == 0:
		return errors.New("no stt provider")
	case len(p.Translate) == 0:
		return errors.New("no translate provider")
	case len(p.TTS) == 0:
		return errors.New("no tts provider")
	}

	seg := a.cfg.Segmentation
	a.tts = a.ttsChain()
	builder := &pipeline.ProviderBuilder{
		Input:      p.Audio,
		VAD:        p.VAD,
		STT:        a.sttChain(),
		Translate:  a.translateChain(),
		TTS:        a.tts,
		Output:     p.Playback,
		SampleRate: seg.SampleRate,
		FrameSize:  seg.FrameSize,
		Logger:     a.logger,
	}
	if speed, ok := a.cfg.Providers.TTS.OptFloat("speed"); ok {
		builder.VoiceSpeed = speed
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithSegmentation(
			segment.WithFrameSize(seg.FrameSize),
			segment.WithThreshold(seg.Threshold),
			segment.WithMinChunk(seg.MinChunk()),
			segment.WithLogger(a.logger),
			segment.WithMetrics(a.metrics),
		),
	}
	if a.journal != nil {
		opts = append(opts, pipeline.WithJournal(a.journal))
	}
	a.controller = pipeline.New(builder, a.catalog, opts...)
	return nil
}

func (a *App) fallbackConfig(kind string) resilience.FallbackConfig {
	return resilience.FallbackConfig{Kind: kind, Metrics: a.metrics, Logger: a.logger}
}

func (a *App) sttChain() stt.Provider {
	list := a.providers.STT
	if len(list) == 1 {
		return list[0].Value
	}
	fb := resilience.NewSTTFallback(list[0].Value, list[0].Name, a.fallbackConfig("stt"))
	for _, n := range list[1:] {
		fb.AddFallback(n.Name, n.Value)
	}
	a.health.Add(health.Breakers("stt", fb.Group().Breakers()))
	return fb
}

func (a *App) translateChain() translate.Provider {
	list := a.providers.Translate
	if len(list) == 1 {
		return list[0].Value
	}
	fb := resilience.NewTranslateFallback(list[0].Value, list[0].Name, a.fallbackConfig("translate"))
	for _, n := range list[1:] {
		fb.AddFallback(n.Name, n.Value)
	}
	a.health.Add(health.Breakers("translate", fb.Group().Breakers()))
	return fb
}

func (a *App) ttsChain() tts.Provider {
	list := a.providers.TTS
	if len(list) == 1 {
		return list[0].Value
	}
	fb := resilience.NewTTSFallback(list[0].Value, list[0].Name, a.fallbackConfig("tts"))
	for _, n := range list[1:] {
		fb.AddFallback(n.Name, n.Value)
	}
	a.health.Add(health.Breakers("tts", fb.Group().Breakers()))
	return fb
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Controller returns the pipeline controller.
func (a *App) Controller() *pipeline.Controller { return a.controller }

// Catalog returns the language catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Server returns the control API server.
func (a *App) Server() *api.Server { return a.server }

// Addr returns the address the API listens on, or nil before Run.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the control API and blocks until ctx is cancelled or the server
// fails. It loads the catalog in the background, starts the config watcher
// when a config path is set and starts the pipeline when
// pipeline.autostart is on.
//
// When ctx is done, Run returns context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	ln := a.listener
	a.mu.Unlock()
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
		}
		a.mu.Lock()
		a.listener = ln
		a.mu.Unlock()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(ln) }()

	go func() {
		if err := a.catalog.Load(ctx); err != nil {
			a.logger.Warn("catalog load failed, using embedded languages", "err", err)
		}
	}()

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.WithWatcherLogger(a.logger))
		if err != nil {
			a.logger.Warn("config watcher disabled", "path", a.configPath, "err", err)
		} else {
			a.mu.Lock()
			a.watcher = w
			a.mu.Unlock()
		}
	}

	if a.cfg.Pipeline.Autostart {
		status := a.controller.Start(a.server.Defaults())
		a.logger.Info("pipeline autostarted", "status", status)
	}

	a.logger.Info("app running", "addr", ln.Addr().String())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-serveErr:
		if err == nil {
			err = errors.New("app: api server stopped")
		}
		return err
	}
}

// applyConfig reacts to a reloaded config file.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.SlogLevel())
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PipelineChanged {
		rc := runConfig(d.Pipeline)
		a.server.SetDefaults(rc)
		if a.controller.IsRunning() {
			status := a.controller.RestartWith(rc)
			a.logger.Info("pipeline restarted with reloaded settings", "status", status)
		}
	}
	if len(d.RestartRequired) > 0 {
		a.logger.Warn("config changes need a process restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown hard-stops the pipeline, shuts the API server down and runs the
// closers. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		a.mu.Lock()
		w := a.watcher
		a.mu.Unlock()
		if w != nil {
			w.Stop()
		}

		status := a.controller.HardStop()
		a.logger.Info("pipeline stopped", "status", status)

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("api shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// runConfig converts the pipeline section to the controller's run settings.
func runConfig(pc config.PipelineConfig) pipeline.RunConfig {
	return pipeline.RunConfig{
		Source:         pc.Source,
		Target:         pc.Target,
		Voice:          pc.Voice,
		SilenceSeconds: pc.SilenceSeconds,
	}
}
