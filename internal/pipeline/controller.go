package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/internal/segment"
	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/journal"
)

// DefaultJoinTimeout is how long Stop waits for the worker before logging
// that it is slow. Stop keeps waiting afterwards.
const DefaultJoinTimeout = 2 * time.Second

// Option configures a [Controller].
type Option func(*Controller)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metrics sink. Default observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithJournal records every translated utterance to w.
func WithJournal(w journal.Writer) Option {
	return func(c *Controller) { c.journal = w }
}

// WithClock replaces time.Now for log and journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithJoinTimeout sets how long Stop waits before logging a slow worker.
func WithJoinTimeout(d time.Duration) Option {
	return func(c *Controller) { c.joinTimeout = d }
}

// WithLogCapacity sets how many log entries are retained. Default 200.
func WithLogCapacity(n int) Option {
	return func(c *Controller) { c.logCap = n }
}

// WithSegmentation adds options for every run's [segment.Engine]. The run's
// sample rate and silence duration are applied after them.
func WithSegmentation(opts ...segment.Option) Option {
	return func(c *Controller) { c.segOpts = append(c.segOpts, opts...) }
}

// WithBaseContext sets the context runs and collaborator calls derive from.
// Cancelling it aborts everything in flight. Default context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(c *Controller) { c.baseCtx = ctx }
}

// Controller runs at most one translation worker at a time. All methods are
// safe for concurrent use.
type Controller struct {
	builder     Builder
	catalog     Catalog
	log         *slog.Logger
	metrics     *observe.Metrics
	journal     journal.Writer
	now         func() time.Time
	joinTimeout time.Duration
	logCap      int
	segOpts     []segment.Option
	baseCtx     context.Context

	// stateMu guards what Snapshot reads.
	stateMu       sync.Mutex
	state         State
	status        string
	ring          *ringLog
	transcription string
	translation   string
	runID         string
	config        RunConfig

	// runMu guards the worker handle and what Stop needs to interrupt it.
	// Lock order: runMu before stateMu.
	runMu     sync.Mutex
	done      chan struct{}
	cancel    context.CancelFunc
	mute      context.CancelFunc
	cancelled bool
	source    audio.Source
	synth     Synthesizer
}

// New returns a stopped controller.
func New(builder Builder, cat Catalog, opts ...Option) *Controller {
	c := &Controller{
		builder:     builder,
		catalog:     cat,
		now:         time.Now,
		joinTimeout: DefaultJoinTimeout,
		logCap:      DefaultLogCapacity,
		baseCtx:     context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.journal == nil {
		c.journal = journal.Discard
	}
	c.ring = newRingLog(c.logCap)
	c.state = StateStopped
	c.status = StateStopped.String()
	return c
}

// Start resolves cfg and launches a worker. It returns "Initializing..." on
// success and a short reason otherwise.
func (c *Controller) Start(cfg RunConfig) string {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.done != nil {
		return "Already running"
	}

	c.stateMu.Lock()
	c.config = cfg
	c.stateMu.Unlock()

	src, locale, okSrc := c.resolveSource(cfg.Source)
	tgt, okTgt := c.catalog.ResolveLanguage(cfg.Target)
	if !okSrc || !okTgt {
		c.logf("Invalid language selection.")
		c.setState(StateError)
		return "Invalid language selection"
	}

	voice, substituted, ok := c.resolveVoice(tgt, cfg.Voice)
	if !ok {
		c.logf("No voice available for the selected language.")
		c.setState(StateError)
		return "Voice unavailable"
	}

	silence := max(MinSilenceSeconds, cfg.SilenceSeconds)
	run := RunConfig{
		Source:         locale,
		Target:         tgt.Code,
		Voice:          voice.ShortName,
		SilenceSeconds: silence,
	}
	runID := uuid.NewString()

	c.stateMu.Lock()
	c.ring.reset()
	c.transcription = ""
	c.translation = ""
	c.runID = runID
	c.stateMu.Unlock()

	if substituted != "" {
		c.logf("%s", substituted)
	}
	c.logf("Initializing pipeline with STT locale %s, translator code %s, TTS voice %s, silence duration %.1fs",
		run.Source, run.Target, run.Voice, run.SilenceSeconds)
	c.log.Info("pipeline: starting", "run_id", runID, "source", src.Code, "locale", locale,
		"target", run.Target, "voice", run.Voice, "silence_s", silence)
	c.setState(StateInitializing)

	ctx, cancel := context.WithCancel(c.baseCtx)
	playCtx, mute := context.WithCancel(c.baseCtx)
	done := make(chan struct{})
	c.done = done
	c.cancel = cancel
	c.mute = mute
	c.cancelled = false
	c.metrics.ActiveRuns.Add(ctx, 1)

	go c.run(ctx, playCtx, done, runID, run)
	return StateInitializing.String()
}

// resolveSource accepts a language code ("en") or a locale of that language
// ("en-GB") and returns the language with the recognition locale to use.
func (c *Controller) resolveSource(code string) (catalog.Language, string, bool) {
	if l, ok := c.catalog.ResolveLanguage(code); ok {
		return l, defaultLocale(l), true
	}
	base, _, found := strings.Cut(code, "-")
	if !found {
		return catalog.Language{}, "", false
	}
	l, ok := c.catalog.ResolveLanguage(base)
	if !ok || !l.HasLocale(code) {
		return catalog.Language{}, "", false
	}
	for _, loc := range l.Locales {
		if strings.EqualFold(loc, code) {
			return l, loc, true
		}
	}
	return l, code, true
}

func defaultLocale(l catalog.Language) string {
	switch {
	case l.DefaultLocale != "":
		return l.DefaultLocale
	case len(l.Locales) > 0:
		return l.Locales[0]
	}
	return l.Code
}

// resolveVoice returns name when it belongs to tgt, else tgt's first voice
// together with the log line announcing the substitution.
func (c *Controller) resolveVoice(tgt catalog.Language, name string) (catalog.Voice, string, bool) {
	if v, ok := c.catalog.ResolveVoice(name); ok && tgt.HasVoice(v.ShortName) {
		return v, "", true
	}
	if len(tgt.Voices) == 0 {
		return catalog.Voice{}, "", false
	}
	fallback := tgt.Voices[0]
	if name == "" {
		return fallback, fmt.Sprintf("No voice selected, using %s.", fallback.ShortName), true
	}
	return fallback, fmt.Sprintf("Voice %s is not available for %s, using %s.", name, tgt.Name, fallback.ShortName), true
}

// Stop ends the current run and waits for the worker. An in-flight
// collaborator call is allowed to finish.
func (c *Controller) Stop() string {
	return c.stop(false)
}

// HardStop is Stop that also cancels speech playback in progress.
func (c *Controller) HardStop() string {
	return c.stop(true)
}

func (c *Controller) stop(hard bool) string {
	c.runMu.Lock()
	done := c.done
	if done == nil {
		c.runMu.Unlock()
		c.setState(StateStopped)
		return "Already stopped"
	}
	if hard {
		c.logf("Hard stop requested by user.")
		c.setStatus(StateStopping, "Hard stopping...")
	} else {
		c.logf("Stop requested by user.")
		c.setState(StateStopping)
	}
	c.cancelled = true
	if c.cancel != nil {
		c.cancel()
	}
	if hard && c.mute != nil {
		c.mute()
	}
	src, synth := c.source, c.synth
	c.source = nil
	c.runMu.Unlock()

	if src != nil {
		if err := src.Close(); err != nil {
			c.logf("Audio source close error: %v", err)
		}
	}
	if hard && synth != nil {
		if err := synth.Cancel(); err != nil {
			c.logf("TTS stop error: %v", err)
		}
	}

	c.join(done)

	c.runMu.Lock()
	defer c.runMu.Unlock()
	switch c.done {
	case done:
		c.done = nil
		c.cancel = nil
		c.mute = nil
	case nil:
	default:
		// A new run was started after the worker exited on its own.
		return StateStopped.String()
	}
	c.logf("Pipeline stopped.")
	c.setState(StateStopped)
	return StateStopped.String()
}

func (c *Controller) join(done <-chan struct{}) {
	timer := time.NewTimer(c.joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
	}
	c.logf("Background thread is taking longer to stop...")
	<-done
}

// RestartWith stops the current run, if any, and starts a new one.
func (c *Controller) RestartWith(cfg RunConfig) string {
	c.Stop()
	return c.Start(cfg)
}

// IsRunning reports whether a worker is alive.
func (c *Controller) IsRunning() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.done != nil
}

// Config returns the configuration most recently passed to Start.
func (c *Controller) Config() RunConfig {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.config
}

// Snapshot returns the current state. It never waits for the worker.
func (c *Controller) Snapshot() Snapshot {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return Snapshot{
		Log:           c.ring.entries(),
		LogText:       c.ring.text(),
		Transcription: c.transcription,
		Translation:   c.translation,
		State:         c.state,
		Status:        c.status,
		RunID:         c.runID,
		Config:        c.config,
	}
}

func (c *Controller) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.stateMu.Lock()
	c.ring.add(newEntry(c.now(), msg))
	runID := c.runID
	c.stateMu.Unlock()
	c.log.Info("pipeline: "+msg, "run_id", runID)
}

func (c *Controller) setState(s State) {
	c.setStatus(s, s.String())
}

func (c *Controller) setStatus(s State, status string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = s
	c.status = status
}

// advance moves the worker to s unless a stop is in progress.
func (c *Controller) advance(s State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateStopping {
		return
	}
	c.state = s
	c.status = s.String()
}

func (c *Controller) isCancelled() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.cancelled
}
