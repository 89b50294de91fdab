package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	audiomock "github.com/MrWong99/relayvox/pkg/audio/mock"
	journalmock "github.com/MrWong99/relayvox/pkg/journal/mock"
)

func TestStopWhenIdle(t *testing.T) {
	t.Parallel()

	c := newController(t, newFixture())
	for range 2 {
		if got := c.Stop(); got != "Already stopped" {
			t.Fatalf("Stop = %q, want Already stopped", got)
		}
		if s := c.Snapshot(); s.State != StateStopped || s.Status != "Stopped" {
			t.Fatalf("state = %v, status = %q", s.State, s.Status)
		}
	}
	if got := c.HardStop(); got != "Already stopped" {
		t.Errorf("HardStop = %q", got)
	}
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	f := newFixture()
	c := newController(t, f)

	if got := c.Start(frenchRun); got != "Initializing..." {
		t.Fatalf("Start = %q", got)
	}
	if got := c.Start(frenchRun); got != "Already running" {
		t.Fatalf("second Start = %q, want Already running", got)
	}
	waitForState(t, c, StateListening)
	if n := len(f.Configs()); n != 1 {
		t.Errorf("Build called %d times, want 1", n)
	}
	if !c.IsRunning() {
		t.Error("IsRunning = false while listening")
	}

	if got := c.Stop(); got != "Stopped" {
		t.Fatalf("Stop = %q", got)
	}
	if c.IsRunning() {
		t.Error("IsRunning = true after Stop")
	}
	if !f.source.Closed() {
		t.Error("audio source not closed")
	}
	if f.vad.CloseCallCount == 0 {
		t.Error("vad session not closed")
	}
	s := c.Snapshot()
	if s.State != StateStopped {
		t.Errorf("state = %v", s.State)
	}
	for _, msg := range []string{"Stop requested by user.", "Pipeline stopped."} {
		if !strings.Contains(s.LogText, msg) {
			t.Errorf("log misses %q:\n%s", msg, s.LogText)
		}
	}
}

func TestStartInvalidLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  RunConfig
	}{
		{name: "unknown source", cfg: RunConfig{Source: "tlh", Target: "fr"}},
		{name: "unknown target", cfg: RunConfig{Source: "en", Target: "tlh"}},
		{name: "locale of other language", cfg: RunConfig{Source: "en-FR", Target: "fr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			c := newController(t, f)
			if got := c.Start(tt.cfg); got != "Invalid language selection" {
				t.Fatalf("Start = %q", got)
			}
			s := c.Snapshot()
			if s.State != StateError || s.Status != "Error" {
				t.Errorf("state = %v", s.State)
			}
			if !strings.Contains(s.LogText, "Invalid language selection.") {
				t.Errorf("log = %q", s.LogText)
			}
			if c.IsRunning() || len(f.Configs()) != 0 {
				t.Error("no worker may be started")
			}
		})
	}
}

func TestStartResolvesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     RunConfig
		want    RunConfig
		wantLog string
	}{
		{
			name: "voice of target kept",
			cfg:  frenchRun,
			want: RunConfig{Source: "en-US", Target: "fr", Voice: "fr-FR-HenriNeural", SilenceSeconds: 3},
		},
		{
			name:    "foreign voice replaced",
			cfg:     RunConfig{Source: "en", Target: "fr", Voice: "en-US-GuyNeural", SilenceSeconds: 3},
			want:    RunConfig{Source: "en-US", Target: "fr", Voice: "fr-FR-DeniseNeural", SilenceSeconds: 3},
			wantLog: "Voice en-US-GuyNeural is not available for French, using fr-FR-DeniseNeural.",
		},
		{
			name:    "empty voice",
			cfg:     RunConfig{Source: "de", Target: "es", SilenceSeconds: 2},
			want:    RunConfig{Source: "de-DE", Target: "es", Voice: "es-ES-ElviraNeural", SilenceSeconds: 2},
			wantLog: "No voice selected, using es-ES-ElviraNeural.",
		},
		{
			name:    "silence clamped",
			cfg:     RunConfig{Source: "en", Target: "fr", Voice: "fr-FR-HenriNeural", SilenceSeconds: 0.1},
			want:    RunConfig{Source: "en-US", Target: "fr", Voice: "fr-FR-HenriNeural", SilenceSeconds: 0.5},
			wantLog: "silence duration 0.5s",
		},
		{
			name: "source locale",
			cfg:  RunConfig{Source: "EN-us", Target: "hi", Voice: "hi-IN-SwaraNeural", SilenceSeconds: 3},
			want: RunConfig{Source: "en-US", Target: "hi", Voice: "hi-IN-SwaraNeural", SilenceSeconds: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			c := newController(t, f)
			if got := c.Start(tt.cfg); got != "Initializing..." {
				t.Fatalf("Start = %q", got)
			}
			waitForState(t, c, StateListening)
			cfgs := f.Configs()
			if len(cfgs) != 1 || cfgs[0] != tt.want {
				t.Fatalf("Build got %+v, want %+v", cfgs, tt.want)
			}
			if tt.wantLog != "" && !logContains(c, tt.wantLog) {
				t.Errorf("log misses %q:\n%s", tt.wantLog, c.Snapshot().LogText)
			}
			if got := c.Config(); got != tt.cfg {
				t.Errorf("Config = %+v, want requested %+v", got, tt.cfg)
			}
			c.Stop()
		})
	}
}

func TestStartLogsInitialization(t *testing.T) {
	t.Parallel()

	c := newController(t, newFixture())
	c.Start(frenchRun)
	waitForLog(t, c, "Components initialized (STT en-US, translator fr, voice fr-FR-HenriNeural).")
	s := c.Snapshot()
	if s.Log[0].Message != "Initializing pipeline with STT locale en-US, translator code fr, TTS voice fr-FR-HenriNeural, silence duration 3.0s" {
		t.Errorf("first log line = %q", s.Log[0].Message)
	}
	if s.RunID == "" {
		t.Error("run ID not assigned")
	}
}

func TestUtteranceFlowsThrough(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	var gotText, gotTarget string
	f.translator = translatorFunc(func(_ context.Context, text, target string) (string, error) {
		gotText, gotTarget = text, target
		return "bonjour", nil
	})
	var gotSamples, gotRate int
	f.recognizer = recognizerFunc(func(_ context.Context, samples []float32, rate int) (string, error) {
		gotSamples, gotRate = len(samples), rate
		return "hello", nil
	})
	rec := &journalmock.Recorder{}
	c := newController(t, f, WithJournal(rec))

	c.Start(frenchRun)
	waitForLog(t, c, "TTS playback completed.")
	waitForState(t, c, StateListening)

	if gotSamples != 63*512 || gotRate != 16000 {
		t.Errorf("recognizer got %d samples at %d Hz", gotSamples, gotRate)
	}
	if gotText != "hello" || gotTarget != "fr" {
		t.Errorf("translator got %q -> %q", gotText, gotTarget)
	}
	if spoken := f.synth.Spoken(); len(spoken) != 1 || spoken[0] != "bonjour" {
		t.Errorf("spoken = %v", spoken)
	}

	s := c.Snapshot()
	if s.Transcription != "hello" || s.Translation != "bonjour" {
		t.Errorf("snapshot texts = %q / %q", s.Transcription, s.Translation)
	}
	for _, msg := range []string{"Recognized text: hello", "Translation: bonjour"} {
		if !strings.Contains(s.LogText, msg) {
			t.Errorf("log misses %q", msg)
		}
	}

	entries := rec.Entries()
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.RunID != s.RunID || e.Seq != 1 || e.SourceLocale != "en-US" || e.TargetCode != "fr" ||
		e.Voice != "fr-FR-HenriNeural" || e.Transcription != "hello" || e.Translation != "bonjour" {
		t.Errorf("journal entry = %+v", e)
	}
	if e.SegmentDuration != 2016*time.Millisecond {
		t.Errorf("segment duration = %v", e.SegmentDuration)
	}
}

func TestEmptyTranscriptionSkipsTranslation(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	f.recognizer = recognizerFunc(func(context.Context, []float32, int) (string, error) { return "", nil })
	var translated atomic.Int32
	f.translator = translatorFunc(func(context.Context, string, string) (string, error) {
		translated.Add(1)
		return "x", nil
	})
	c := newController(t, f)

	c.Start(frenchRun)
	waitForLog(t, c, "No transcription returned")
	waitForState(t, c, StateListening)
	if translated.Load() != 0 {
		t.Error("translator called for empty transcription")
	}
	if len(f.synth.Spoken()) != 0 {
		t.Error("synthesizer called for empty transcription")
	}
}

func TestEmptyTranslationSkipsSynthesis(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	f.translator = translatorFunc(func(context.Context, string, string) (string, error) { return "", nil })
	c := newController(t, f)

	c.Start(frenchRun)
	waitForLog(t, c, "Translation failed or empty.")
	waitForState(t, c, StateListening)
	if len(f.synth.Spoken()) != 0 {
		t.Error("synthesizer called for empty translation")
	}
}

func TestCollaboratorErrorsAreTransient(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(f *fixture)
		log   string
	}{
		{
			name: "recognizer",
			setup: func(f *fixture) {
				f.recognizer = recognizerFunc(func(context.Context, []float32, int) (string, error) { return "", boom })
			},
			log: "Transcription failed: boom",
		},
		{
			name: "translator",
			setup: func(f *fixture) {
				f.translator = translatorFunc(func(context.Context, string, string) (string, error) { return "", boom })
			},
			log: "Translation failed: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(utterance()...)
			tt.setup(f)
			c := newController(t, f)
			c.Start(frenchRun)
			waitForLog(t, c, tt.log)
			waitForState(t, c, StateListening)
			if !c.IsRunning() {
				t.Error("run ended after a transient error")
			}
		})
	}
}

// errSynth fails every Speak call.
type errSynth struct{ *fakeSynth }

func (s errSynth) Speak(ctx context.Context, text string) error {
	_ = s.fakeSynth.Speak(ctx, text)
	return errors.New("device gone")
}

func TestSynthesisErrorIsTransient(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	c := newController(t, BuilderFunc(func(ctx context.Context, cfg RunConfig) (*Components, error) {
		comps, err := f.Build(ctx, cfg)
		if err != nil {
			return nil, err
		}
		comps.Synthesizer = errSynth{f.synth}
		return comps, nil
	}))
	c.Start(frenchRun)
	waitForLog(t, c, "TTS playback failed: device gone")
	waitForState(t, c, StateListening)
}

func TestBuildFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.buildErr = errors.New("no microphone")
	c := newController(t, f)

	c.Start(frenchRun)
	waitForState(t, c, StateError)
	waitFor(t, "worker exit", func() bool { return !c.IsRunning() })
	if !logContains(c, "Pipeline error: build components: no microphone") {
		t.Errorf("log = %q", c.Snapshot().LogText)
	}

	// The controller accepts a fresh start.
	f.mu.Lock()
	f.buildErr = nil
	f.mu.Unlock()
	if got := c.Start(frenchRun); got != "Initializing..." {
		t.Errorf("Start after error = %q", got)
	}
	waitForState(t, c, StateListening)
}

func TestPanicIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	f.translator = translatorFunc(func(context.Context, string, string) (string, error) {
		panic("translator exploded")
	})
	c := newController(t, f)

	c.Start(frenchRun)
	waitForState(t, c, StateError)
	waitFor(t, "worker exit", func() bool { return !c.IsRunning() })
	if !logContains(c, "Pipeline error: translator exploded") {
		t.Errorf("log = %q", c.Snapshot().LogText)
	}
	if !f.source.Closed() {
		t.Error("components not released after panic")
	}
}

func TestSourceEndEndsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	f.source.EOFAtEnd = true
	c := newController(t, f)

	c.Start(frenchRun)
	waitFor(t, "worker exit", func() bool { return !c.IsRunning() })
	s := c.Snapshot()
	if s.State != StateStopped {
		t.Errorf("state = %v, want Stopped", s.State)
	}
	if !strings.Contains(s.LogText, "Audio source ended.") {
		t.Errorf("log = %q", s.LogText)
	}
	if len(f.synth.Spoken()) != 1 {
		t.Errorf("spoken = %v", f.synth.Spoken())
	}
}

func TestHardStopCancelsSynthesis(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	f.synth = newFakeSynth(true)
	c := newController(t, f)

	c.Start(frenchRun)
	<-f.synth.speaking
	waitForState(t, c, StateSpeaking)

	if got := c.HardStop(); got != "Stopped" {
		t.Fatalf("HardStop = %q", got)
	}
	if f.synth.Cancels() != 1 {
		t.Errorf("Cancel calls = %d, want 1", f.synth.Cancels())
	}
	s := c.Snapshot()
	if s.State != StateStopped {
		t.Errorf("state = %v", s.State)
	}
	if !strings.Contains(s.LogText, "Hard stop requested by user.") {
		t.Errorf("log = %q", s.LogText)
	}
	if strings.Contains(s.LogText, "TTS playback completed.") {
		t.Error("cancelled playback reported as completed")
	}
}

// lateSynth misses every Cancel call, as when a hard stop arrives before
// playback has registered anything to cancel.
type lateSynth struct {
	speaking chan struct{}
}

func (s lateSynth) Speak(ctx context.Context, _ string) error {
	close(s.speaking)
	<-ctx.Done()
	return ctx.Err()
}

func (lateSynth) Cancel() error { return nil }

func TestHardStopInterruptsUncancellablePlayback(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	synth := lateSynth{speaking: make(chan struct{})}
	c := newController(t, BuilderFunc(func(ctx context.Context, cfg RunConfig) (*Components, error) {
		comps, err := f.Build(ctx, cfg)
		if err == nil {
			comps.Synthesizer = synth
		}
		return comps, err
	}))

	c.Start(frenchRun)
	<-synth.speaking

	result := make(chan string, 1)
	go func() { result <- c.HardStop() }()
	select {
	case got := <-result:
		if got != "Stopped" {
			t.Errorf("HardStop = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("HardStop waited for playback the synthesizer could not cancel")
	}
	if s := c.Snapshot(); !strings.Contains(s.LogText, "TTS playback interrupted.") {
		t.Errorf("log = %q", s.LogText)
	}
}

func TestStopKeepsRunStartedMeanwhile(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.freshSource = func() *audiomock.Source { return audiomock.NewSource() }
	c := newController(t, f)

	next := RunConfig{Source: "en", Target: "de", SilenceSeconds: 1.5}
	restarted := make(chan string, 1)
	// Cancel runs after the source was closed; by then the first worker
	// exits and a second run can start before HardStop returns.
	f.synth.onCancel = func() {
		waitFor(t, "first worker exit", func() bool { return !c.IsRunning() })
		restarted <- c.Start(next)
	}

	c.Start(frenchRun)
	waitForState(t, c, StateListening)

	if got := c.HardStop(); got != "Stopped" {
		t.Fatalf("HardStop = %q", got)
	}
	if got := <-restarted; got != "Initializing..." {
		t.Fatalf("Start = %q", got)
	}
	if !c.IsRunning() {
		t.Fatal("second run was stopped")
	}
	if s := c.Snapshot(); s.State == StateStopped {
		t.Errorf("second run state overwritten with %v", s.State)
	}
	if strings.Contains(c.Snapshot().LogText, "Pipeline stopped.") {
		t.Error("stop of the first run logged into the second run")
	}
	waitForState(t, c, StateListening)
}

func TestStopWaitsForInFlightCall(t *testing.T) {
	t.Parallel()

	f := newFixture(utterance()...)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.recognizer = recognizerFunc(func(ctx context.Context, _ []float32, _ int) (string, error) {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "hello", nil
	})
	c := newController(t, f, WithJoinTimeout(20*time.Millisecond))

	c.Start(frenchRun)
	<-entered

	result := make(chan string, 1)
	go func() { result <- c.Stop() }()

	waitForLog(t, c, "Background thread is taking longer to stop...")
	if s := c.Snapshot(); s.State != StateStopping || s.Status != "Stopping..." {
		t.Errorf("state while waiting = %v", s.State)
	}
	select {
	case got := <-result:
		t.Fatalf("Stop returned %q before the call finished", got)
	default:
	}

	close(release)
	select {
	case got := <-result:
		if got != "Stopped" {
			t.Errorf("Stop = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	// The stop is observed before synthesis.
	if len(f.synth.Spoken()) != 0 {
		t.Error("worker spoke after stop")
	}
}

func TestStopDuringBuild(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	c := newController(t, BuilderFunc(func(ctx context.Context, cfg RunConfig) (*Components, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	c.Start(frenchRun)
	<-entered
	if got := c.Stop(); got != "Stopped" {
		t.Fatalf("Stop = %q", got)
	}
	if s := c.Snapshot(); s.State != StateStopped || strings.Contains(s.LogText, "Pipeline error") {
		t.Errorf("state = %v, log = %q", s.State, s.LogText)
	}
}

func TestRestartWith(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.freshSource = func() *audiomock.Source { return audiomock.NewSource() }
	c := newController(t, f)

	c.Start(frenchRun)
	waitForState(t, c, StateListening)

	next := RunConfig{Source: "en", Target: "de", SilenceSeconds: 1.5}
	if got := c.RestartWith(next); got != "Initializing..." {
		t.Fatalf("RestartWith = %q", got)
	}
	waitForState(t, c, StateListening)

	cfgs := f.Configs()
	if len(cfgs) != 2 {
		t.Fatalf("Build calls = %d, want 2", len(cfgs))
	}
	if cfgs[1].Target != "de" || cfgs[1].Voice != "de-DE-ConradNeural" || cfgs[1].SilenceSeconds != 1.5 {
		t.Errorf("second run = %+v", cfgs[1])
	}
	if c.Config() != next {
		t.Errorf("Config = %+v", c.Config())
	}
}

func TestRestartWithWhenIdleStarts(t *testing.T) {
	t.Parallel()

	c := newController(t, newFixture())
	if got := c.RestartWith(frenchRun); got != "Initializing..." {
		t.Fatalf("RestartWith = %q", got)
	}
	waitForState(t, c, StateListening)
}

func TestLogCapacity(t *testing.T) {
	t.Parallel()

	c := newController(t, newFixture(), WithLogCapacity(3))
	for range 5 {
		c.Stop()
		c.Start(RunConfig{Source: "tlh", Target: "fr"})
	}
	s := c.Snapshot()
	if len(s.Log) != 3 {
		t.Fatalf("log length = %d, want 3", len(s.Log))
	}
}

func TestStateStrings(t *testing.T) {
	t.Parallel()

	want := map[State]string{
		StateStopped:      "Stopped",
		StateInitializing: "Initializing...",
		StateListening:    "Listening...",
		StateTranscribing: "Transcribing...",
		StateTranslating:  "Translating...",
		StateSpeaking:     "Speaking...",
		StateStopping:     "Stopping...",
		StateError:        "Error",
		State(99):         "Unknown",
	}
	for s, text := range want {
		if s.String() != text {
			t.Errorf("State(%d) = %q, want %q", s, s.String(), text)
		}
	}
	b, _ := StateListening.MarshalText()
	if string(b) != "Listening..." {
		t.Errorf("MarshalText = %q", b)
	}
}
