// Package energy is a pure-Go [vad.Engine] that scores frames by RMS level.
//
// The RMS of each frame is mapped linearly from a noise floor (probability 0)
// to a speech ceiling (probability 1) and optionally smoothed across frames.
// It needs no model files and works well for close microphones in quiet
// rooms; use the silero engine for anything noisier.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// Defaults tuned for 16 kHz speech at conversational level.
const (
	DefaultFloor     = 0.008
	DefaultCeiling   = 0.03
	DefaultSmoothing = 0.5
)

// Option configures an [Engine].
type Option func(*Engine)

// WithFloor sets the RMS level mapped to probability 0.
func WithFloor(rms float64) Option {
	return func(e *Engine) { e.floor = rms }
}

// WithCeiling sets the RMS level mapped to probability 1.
func WithCeiling(rms float64) Option {
	return func(e *Engine) { e.ceiling = rms }
}

// WithSmoothing sets the weight of the previous probability in [0, 1).
// Zero disables smoothing.
func WithSmoothing(alpha float64) Option {
	return func(e *Engine) { e.smoothing = alpha }
}

// Engine creates energy-based sessions.
type Engine struct {
	floor     float64
	ceiling   float64
	smoothing float64
}

var _ vad.Engine = (*Engine)(nil)

// New returns an energy engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{floor: DefaultFloor, ceiling: DefaultCeiling, smoothing: DefaultSmoothing}
	for _, o := range opts {
		o(e)
	}
	if e.floor < 0 || e.ceiling <= e.floor {
		return nil, fmt.Errorf("energy: ceiling (%g) must exceed floor (%g)", e.ceiling, e.floor)
	}
	if e.smoothing < 0 || e.smoothing >= 1 {
		return nil, fmt.Errorf("energy: smoothing must be in [0, 1), got %g", e.smoothing)
	}
	return e, nil
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &session{eng: e, frameSize: cfg.FrameSize}, nil
}

type session struct {
	eng       *Engine
	frameSize int

	mu     sync.Mutex
	prev   float64
	primed bool
	closed bool
}

var errNonFinite = errors.New("non-finite sample")

func (s *session) Infer(frame []float32) (float64, error) {
	if err := vad.CheckFrame(frame, s.frameSize); err != nil {
		return 0, err
	}
	for _, v := range frame {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, &vad.InferenceError{Frame: len(frame), Err: errNonFinite}
		}
	}

	level := audio.RMS(frame)
	p := (level - s.eng.floor) / (s.eng.ceiling - s.eng.floor)
	p = min(max(p, 0), 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &vad.InferenceError{Frame: len(frame), Err: errors.New("session closed")}
	}
	if s.primed && s.eng.smoothing > 0 {
		p = s.eng.smoothing*s.prev + (1-s.eng.smoothing)*p
	}
	s.prev = p
	s.primed = true
	return p, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prev = 0
	s.primed = false
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
