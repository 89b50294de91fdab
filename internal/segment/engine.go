// Package segment turns a continuous audio stream into discrete speech
// segments.
//
// An [Engine] pulls frames from an [audio.Source], scores every
// fixed-size window with a voice activity model and runs a two-state
// (speech/silence) machine over the scores. Speech is accumulated while the
// model reports probabilities above the threshold; once the speaker has been
// quiet for longer than the silence duration the accumulated audio is emitted
// as a [Segment], unless it is shorter than the minimum chunk length.
//
// An Engine is single-use: once the source ends, every further call to
// [Engine.Next] returns [ErrClosed].
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// ErrClosed is returned by [Engine.Next] once the audio source has ended.
// Speech pending at that moment is discarded.
var ErrClosed = errors.New("segment: source closed")

// Defaults match the Silero v5 model at 16 kHz.
const (
	DefaultSampleRate = 16000
	DefaultFrameSize  = 512
	DefaultThreshold  = 0.6
	DefaultSilence    = 3 * time.Second
	DefaultMinChunk   = 500 * time.Millisecond
)

// Segment is one completed utterance.
type Segment struct {
	// Samples holds mono float32 audio in [-1, 1].
	Samples []float32

	// SampleRate is the rate of Samples in Hz.
	SampleRate int

	// Start is when the first speech frame was classified.
	Start time.Time

	// End is when the silence timeout closed the segment.
	End time.Time
}

// Duration returns the audio length of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Frames          int
	SpeechFrames    int
	InferenceErrors int
	Emitted         int
	Discarded       int
}

// Option configures an [Engine].
type Option func(*Engine)

// WithSampleRate sets the sample rate of the source. Default 16000.
func WithSampleRate(rate int) Option {
	return func(e *Engine) { e.sampleRate = rate }
}

// WithFrameSize sets the number of samples scored per inference. Default 512.
func WithFrameSize(n int) Option {
	return func(e *Engine) { e.frameSize = n }
}

// WithThreshold sets the probability a frame must exceed to count as
// speech. Default 0.6.
func WithThreshold(p float64) Option {
	return func(e *Engine) { e.threshold = p }
}

// WithSilence sets how long the speaker must be quiet before a segment is
// closed. Default 3s.
func WithSilence(d time.Duration) Option {
	return func(e *Engine) { e.silence = d }
}

// WithMinChunk sets the shortest segment that is emitted. Default 0.5s.
func WithMinChunk(d time.Duration) Option {
	return func(e *Engine) { e.minChunk = d }
}

// WithClock replaces time.Now. Tests use it to advance time per frame.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics sets the metrics sink. Default observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is the speech/silence state machine. Next must not be called
// concurrently; Stats may be called from any goroutine.
type Engine struct {
	src   audio.Source
	model vad.SessionHandle

	sampleRate int
	frameSize  int
	threshold  float64
	silence    time.Duration
	minChunk   time.Duration
	now        func() time.Time
	log        *slog.Logger
	metrics    *observe.Metrics

	// rolling holds samples not yet scored.
	rolling []float32

	// Speech state.
	active     bool
	chunks     [][]float32
	start      time.Time
	lastSpeech time.Time

	frameIndex int
	err        error

	mu    sync.Mutex
	stats Stats
}

// New returns an engine reading from src and scoring with model. The engine
// does not own either: closing them is the caller's job.
func New(src audio.Source, model vad.SessionHandle, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, errors.New("segment: source must not be nil")
	}
	if model == nil {
		return nil, errors.New("segment: model must not be nil")
	}
	e := &Engine{
		src:        src,
		model:      model,
		sampleRate: DefaultSampleRate,
		frameSize:  DefaultFrameSize,
		threshold:  DefaultThreshold,
		silence:    DefaultSilence,
		minChunk:   DefaultMinChunk,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.sampleRate <= 0 {
		return nil, fmt.Errorf("segment: sample rate must be positive, got %d", e.sampleRate)
	}
	if e.frameSize <= 0 {
		return nil, fmt.Errorf("segment: frame size must be positive, got %d", e.frameSize)
	}
	if e.silence < 0 || e.minChunk < 0 {
		return nil, errors.New("segment: durations must not be negative")
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e, nil
}

// minSamples is the smallest sample count an emitted segment may have.
func (e *Engine) minSamples() int {
	return int(e.minChunk.Seconds() * float64(e.sampleRate))
}

// Next blocks until the next segment is complete. It returns [ErrClosed]
// once the source reports [audio.ErrClosed] or io.EOF, and ctx.Err() when
// ctx is done. Any other source error is returned wrapped and is sticky.
func (e *Engine) Next(ctx context.Context) (Segment, error) {
	if err := e.Err(); err != nil {
		return Segment{}, err
	}
	for {
		for len(e.rolling) >= e.frameSize {
			frame := slices.Clone(e.rolling[:e.frameSize])
			e.rolling = e.rolling[e.frameSize:]
			if seg, ok := e.classify(ctx, frame); ok {
				return seg, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return Segment{}, err
		}
		samples, err := e.src.NextFrame(ctx)
		if err != nil {
			switch {
			case errors.Is(err, audio.ErrClosed), errors.Is(err, io.EOF):
				if e.active {
					e.log.Debug("segment: source ended with pending speech", "frames", len(e.chunks))
				}
				e.resetSpeech()
				e.rolling = nil
				return Segment{}, e.fail(ErrClosed)
			case ctx.Err() != nil:
				return Segment{}, ctx.Err()
			default:
				return Segment{}, e.fail(fmt.Errorf("segment: read source: %w", err))
			}
		}
		e.rolling = append(e.rolling, samples...)
	}
}

// classify runs one frame through the model and the state machine. It
// reports a segment when the frame closed one.
func (e *Engine) classify(ctx context.Context, frame []float32) (Segment, bool) {
	idx := e.frameIndex
	e.frameIndex++

	p, err := e.model.Infer(frame)
	if err != nil {
		e.mu.Lock()
		e.stats.InferenceErrors++
		e.mu.Unlock()
		e.metrics.VADErrors.Add(ctx, 1)
		e.log.Warn("segment: inference failed, skipping frame", "frame", idx, "err", err)
		return Segment{}, false
	}

	now := e.now()
	speech := p > e.threshold

	e.mu.Lock()
	e.stats.Frames++
	if speech {
		e.stats.SpeechFrames++
	}
	e.mu.Unlock()
	e.metrics.RecordVADFrame(ctx, speech)

	if speech {
		if !e.active {
			e.chunks = e.chunks[:0]
			e.start = now
			e.active = true
		}
		e.chunks = append(e.chunks, frame)
		e.lastSpeech = now
		return Segment{}, false
	}

	if !e.active || now.Sub(e.lastSpeech) <= e.silence {
		return Segment{}, false
	}

	seg := Segment{
		Samples:    slices.Concat(e.chunks...),
		SampleRate: e.sampleRate,
		Start:      e.start,
		End:        now,
	}
	e.resetSpeech()

	if len(seg.Samples) < e.minSamples() {
		e.mu.Lock()
		e.stats.Discarded++
		e.mu.Unlock()
		e.metrics.SegmentsDiscarded.Add(ctx, 1)
		e.log.Debug("segment: discarded short burst", "samples", len(seg.Samples), "min", e.minSamples())
		return Segment{}, false
	}

	e.mu.Lock()
	e.stats.Emitted++
	e.mu.Unlock()
	e.metrics.RecordSegment(ctx, seg.Duration().Seconds())
	return seg, true
}

func (e *Engine) resetSpeech() {
	e.active = false
	e.chunks = nil
	e.start = time.Time{}
	e.lastSpeech = time.Time{}
}

// Segments runs Next in a goroutine and delivers segments on the returned
// channel, which is closed when Next fails. The terminal error is available
// from [Engine.Err] after the channel closes.
func (e *Engine) Segments(ctx context.Context) <-chan Segment {
	ch := make(chan Segment)
	go func() {
		defer close(ch)
		for {
			seg, err := e.Next(ctx)
			if err != nil {
				e.fail(err)
				return
			}
			select {
			case ch <- seg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// fail latches err as the terminal error unless one is already set.
func (e *Engine) fail(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
	return e.err
}

// Err returns the error that ended the engine, or nil while it is usable.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
