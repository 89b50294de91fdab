package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/internal/segment"
	"github.com/MrWong99/relayvox/pkg/journal"
)

// worker is the state of one run.
type worker struct {
	c     *Controller
	runID string
	cfg   RunConfig
	comps *Components
	seq   int

	// play is cancelled by HardStop and bounds speech playback.
	play context.Context
}

// run is the worker goroutine. ctx is cancelled by Stop; collaborator calls
// use the controller's base context instead so they are not interrupted.
func (c *Controller) run(ctx, play context.Context, done chan struct{}, runID string, cfg RunConfig) {
	w := &worker{c: c, runID: runID, cfg: cfg, play: play}
	failed := false

	defer func() {
		if r := recover(); r != nil {
			c.logf("Pipeline error: %v", r)
			c.log.Error("pipeline: worker panic", "run_id", runID, "panic", r, "stack", string(debug.Stack()))
			failed = true
		}

		if err := w.comps.Close(); err != nil {
			c.log.Warn("pipeline: close components", "run_id", runID, "err", err)
		}

		outcome := "stopped"
		if failed {
			outcome = "error"
			c.setState(StateError)
		} else {
			c.setState(StateStopped)
		}
		c.metrics.RecordPipelineRun(c.baseCtx, outcome)
		c.metrics.ActiveRuns.Add(c.baseCtx, -1)

		c.runMu.Lock()
		c.cancelled = false
		c.source = nil
		c.synth = nil
		if c.done == done {
			if c.mute != nil {
				c.mute()
			}
			c.done = nil
			c.cancel = nil
			c.mute = nil
		}
		c.runMu.Unlock()
		close(done)
	}()

	if err := w.loop(ctx); err != nil {
		c.logf("Pipeline error: %v", err)
		c.log.Error("pipeline: run failed", "run_id", runID, "err", err)
		failed = true
	}
}

// loop returns nil when the run ended normally or was stopped.
func (w *worker) loop(ctx context.Context) error {
	c := w.c

	comps, err := c.builder.Build(ctx, w.cfg)
	w.comps = comps
	if err == nil {
		err = comps.validate()
	}
	if err != nil {
		if c.isCancelled() {
			return nil
		}
		return fmt.Errorf("build components: %w", err)
	}

	c.runMu.Lock()
	if c.cancelled {
		c.runMu.Unlock()
		return nil
	}
	c.source = comps.Source
	c.synth = comps.Synthesizer
	c.runMu.Unlock()

	rate := comps.SampleRate
	if rate <= 0 {
		rate = segment.DefaultSampleRate
	}
	opts := append([]segment.Option{
		segment.WithLogger(c.log),
		segment.WithMetrics(c.metrics),
	}, c.segOpts...)
	opts = append(opts,
		segment.WithSampleRate(rate),
		segment.WithSilence(w.cfg.Silence()),
	)
	eng, err := segment.New(comps.Source, comps.VAD, opts...)
	if err != nil {
		return err
	}

	c.logf("Components initialized (STT %s, translator %s, voice %s).", w.cfg.Source, w.cfg.Target, w.cfg.Voice)
	c.advance(StateListening)

	for {
		if c.isCancelled() {
			return nil
		}
		seg, err := eng.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, segment.ErrClosed):
			if !c.isCancelled() {
				c.logf("Audio source ended.")
			}
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
		if c.isCancelled() {
			return nil
		}
		if !w.handle(seg) {
			return nil
		}
	}
}

// handle relays one segment. It reports false when a stop was observed.
func (w *worker) handle(seg segment.Segment) bool {
	c := w.c
	ctx, span := observe.StartSpan(c.baseCtx, "pipeline.utterance",
		trace.WithAttributes(
			attribute.String("run_id", w.runID),
			attribute.Float64("segment_seconds", seg.Duration().Seconds()),
		))
	defer span.End()

	c.advance(StateTranscribing)
	start := time.Now()
	text, err := w.comps.Recognizer.Recognize(ctx, seg.Samples, seg.SampleRate)
	c.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordProviderError(ctx, "recognizer", "stt")
		c.logf("Transcription failed: %v", err)
		c.advance(StateListening)
		return true
	}
	if text == "" {
		c.logf("No transcription returned.")
		c.advance(StateListening)
		return true
	}
	c.stateMu.Lock()
	c.transcription = text
	c.stateMu.Unlock()
	c.logf("Recognized text: %s", text)

	c.advance(StateTranslating)
	start = time.Now()
	translated, err := w.comps.Translator.Translate(ctx, text, w.cfg.Target)
	c.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordProviderError(ctx, "translator", "translate")
		c.logf("Translation failed: %v", err)
		c.advance(StateListening)
		return true
	}
	if translated == "" {
		c.logf("Translation failed or empty.")
		c.advance(StateListening)
		return true
	}
	c.stateMu.Lock()
	c.translation = translated
	c.stateMu.Unlock()
	c.logf("Translation: %s", translated)

	w.record(ctx, seg, text, translated)

	if c.isCancelled() {
		return false
	}

	c.advance(StateSpeaking)
	start = time.Now()
	err = w.speak(ctx, translated)
	c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if c.isCancelled() {
			c.logf("TTS playback interrupted.")
			return false
		}
		span.RecordError(err)
		c.metrics.RecordProviderError(ctx, "synthesizer", "tts")
		c.logf("TTS playback failed: %v", err)
		c.advance(StateListening)
		return true
	}
	c.metrics.Utterances.Add(ctx, 1)
	c.logf("TTS playback completed.")
	c.advance(StateListening)
	return true
}

// speak plays text until it finishes or HardStop cancels the run's
// playback context, even when the stop lands before the synthesizer has
// anything to cancel.
func (w *worker) speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if w.play != nil {
		defer context.AfterFunc(w.play, cancel)()
	}
	return w.comps.Synthesizer.Speak(ctx, text)
}

func (w *worker) record(ctx context.Context, seg segment.Segment, text, translated string) {
	w.seq++
	e := journal.Entry{
		RunID:           w.runID,
		Seq:             w.seq,
		SourceLocale:    w.cfg.Source,
		TargetCode:      w.cfg.Target,
		Voice:           w.cfg.Voice,
		Transcription:   text,
		Translation:     translated,
		SegmentDuration: seg.Duration(),
		CreatedAt:       w.c.now(),
	}
	if err := w.c.journal.Record(ctx, e); err != nil {
		w.c.log.Warn("pipeline: journal record failed", "run_id", w.runID, "seq", w.seq, "err", err)
	}
}
