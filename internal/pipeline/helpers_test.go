package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/internal/segment"
	"github.com/MrWong99/relayvox/pkg/audio"
	audiomock "github.com/MrWong99/relayvox/pkg/audio/mock"
	vadmock "github.com/MrWong99/relayvox/pkg/provider/vad/mock"
)

// frameStep is 512 samples at 16 kHz.
const frameStep = 32 * time.Millisecond

// steppingClock advances by frameStep on every call.
func steppingClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(frameStep)
		return t
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// utterance is 2 s of loud audio followed by 3.5 s of silence, which the
// segmentation engine turns into exactly one segment.
func utterance() [][]float32 {
	all := make([]float32, 32000+56000)
	for i := range 32000 {
		all[i] = 0.5
	}
	var frames [][]float32
	for len(all) > 0 {
		n := min(1600, len(all))
		frames = append(frames, all[:n])
		all = all[n:]
	}
	return frames
}

func loudnessModel() *vadmock.Session {
	return &vadmock.Session{Func: func(frame []float32) (float64, error) {
		if audio.RMS(frame) > 0.1 {
			return 0.9, nil
		}
		return 0.1, nil
	}}
}

type recognizerFunc func(ctx context.Context, samples []float32, rate int) (string, error)

func (f recognizerFunc) Recognize(ctx context.Context, samples []float32, rate int) (string, error) {
	return f(ctx, samples, rate)
}

type translatorFunc func(ctx context.Context, text, target string) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text, target string) (string, error) {
	return f(ctx, text, target)
}

// fakeSynth records spoken text. With Block set, Speak waits until Cancel.
type fakeSynth struct {
	mu       sync.Mutex
	spoken   []string
	cancels  int
	block    bool
	speaking chan struct{}
	stop     chan struct{}
	once     sync.Once

	// onCancel runs on the first Cancel call.
	onCancel func()
}

func newFakeSynth(block bool) *fakeSynth {
	return &fakeSynth{block: block, speaking: make(chan struct{}, 16), stop: make(chan struct{})}
}

func (s *fakeSynth) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	s.speaking <- struct{}{}
	if !s.block {
		return nil
	}
	select {
	case <-s.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSynth) Cancel() error {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
	s.once.Do(func() {
		close(s.stop)
		if s.onCancel != nil {
			s.onCancel()
		}
	})
	return nil
}

func (s *fakeSynth) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.spoken...)
}

func (s *fakeSynth) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// fixture builds components around scripted collaborators and records
// every Build call.
type fixture struct {
	mu      sync.Mutex
	configs []RunConfig

	source      *audiomock.Source
	vad         *vadmock.Session
	recognizer  Recognizer
	translator  Translator
	synth       *fakeSynth
	buildErr    error
	freshSource func() *audiomock.Source
}

func newFixture(frames ...[]float32) *fixture {
	return &fixture{
		source: audiomock.NewSource(frames...),
		vad:    loudnessModel(),
		recognizer: recognizerFunc(func(context.Context, []float32, int) (string, error) {
			return "hello", nil
		}),
		translator: translatorFunc(func(context.Context, string, string) (string, error) {
			return "bonjour", nil
		}),
		synth: newFakeSynth(false),
	}
}

func (f *fixture) Build(_ context.Context, cfg RunConfig) (*Components, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	src := f.source
	if f.freshSource != nil && len(f.configs) > 1 {
		src = f.freshSource()
	}
	return &Components{
		Source:      src,
		VAD:         f.vad,
		Recognizer:  f.recognizer,
		Translator:  f.translator,
		Synthesizer: f.synth,
		SampleRate:  16000,
	}, nil
}

func (f *fixture) Configs() []RunConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RunConfig{}, f.configs...)
}

func newController(t *testing.T, b Builder, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{
		WithLogger(testLogger()),
		WithMetrics(testMetrics(t)),
		WithSegmentation(segment.WithClock(steppingClock())),
	}, opts...)
	c := New(b, catalog.NewStatic(catalog.Fallback()), opts...)
	t.Cleanup(func() { c.HardStop() })
	return c
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func logContains(c *Controller, msg string) bool {
	return strings.Contains(c.Snapshot().LogText, msg)
}

func waitForLog(t *testing.T, c *Controller, msg string) {
	t.Helper()
	waitFor(t, "log "+msg, func() bool { return logContains(c, msg) })
}

func waitForState(t *testing.T, c *Controller, s State) {
	t.Helper()
	waitFor(t, "state "+s.String(), func() bool { return c.Snapshot().State == s })
}

var frenchRun = RunConfig{Source: "en", Target: "fr", Voice: "fr-FR-HenriNeural", SilenceSeconds: 3}
