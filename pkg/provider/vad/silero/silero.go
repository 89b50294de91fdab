// Package silero runs the Silero VAD v5 ONNX model through ONNX Runtime
// (github.com/yalue/onnxruntime_go).
//
// The ONNX Runtime shared library is loaded once per process. Each session
// owns its own tensors and recurrent state, so sessions can run on separate
// goroutines.
package silero

import (
	"errors"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

var (
	envOnce sync.Once
	envErr  error
)

// Option configures an [Engine].
type Option func(*Engine)

// WithLibraryPath sets the path of the onnxruntime shared library. When empty
// the platform default search path is used.
func WithLibraryPath(path string) Option {
	return func(e *Engine) { e.libPath = path }
}

// WithIntraOpThreads limits ONNX Runtime's intra-op thread pool. Default 1.
func WithIntraOpThreads(n int) Option {
	return func(e *Engine) { e.threads = n }
}

// Engine creates Silero sessions from a model file.
type Engine struct {
	modelPath string
	libPath   string
	threads   int
}

var _ vad.Engine = (*Engine)(nil)

// New returns a Silero engine for the model at modelPath. The runtime is
// initialised on the first NewSession.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("silero: model path must not be empty")
	}
	e := &Engine{modelPath: modelPath, threads: 1}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) initEnv() error {
	envOnce.Do(func() {
		if e.libPath != "" {
			ort.SetSharedLibraryPath(e.libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("silero: initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

// contextSize returns the number of trailing samples of the previous frame
// that Silero v5 prepends to each window.
func contextSize(sampleRate int) int {
	if sampleRate == 8000 {
		return 32
	}
	return 64
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return nil, fmt.Errorf("silero: unsupported sample rate %d (want 8000 or 16000)", cfg.SampleRate)
	}
	if err := e.initEnv(); err != nil {
		return nil, err
	}

	ctxLen := contextSize(cfg.SampleRate)
	s := &session{frameSize: cfg.FrameSize, ctxLen: ctxLen}

	var err error
	defer func() {
		if err != nil {
			s.destroy()
		}
	}()

	if s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(ctxLen+cfg.FrameSize))); err != nil {
		return nil, fmt.Errorf("silero: input tensor: %w", err)
	}
	if s.state, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return nil, fmt.Errorf("silero: state tensor: %w", err)
	}
	if s.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(cfg.SampleRate)}); err != nil {
		return nil, fmt.Errorf("silero: sr tensor: %w", err)
	}
	if s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return nil, fmt.Errorf("silero: output tensor: %w", err)
	}
	if s.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return nil, fmt.Errorf("silero: stateN tensor: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("silero: session options: %w", err)
	}
	defer opts.Destroy()
	if err = opts.SetIntraOpNumThreads(e.threads); err != nil {
		return nil, fmt.Errorf("silero: set threads: %w", err)
	}
	if err = opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("silero: set threads: %w", err)
	}

	s.sess, err = ort.NewAdvancedSession(e.modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{s.input, s.state, s.sr},
		[]ort.Value{s.output, s.stateN},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("silero: load model %q: %w", e.modelPath, err)
	}
	return s, nil
}

type session struct {
	frameSize int
	ctxLen    int

	mu     sync.Mutex
	sess   *ort.AdvancedSession
	input  *ort.Tensor[float32]
	state  *ort.Tensor[float32]
	sr     *ort.Tensor[int64]
	output *ort.Tensor[float32]
	stateN *ort.Tensor[float32]
	closed bool
}

func (s *session) Infer(frame []float32) (float64, error) {
	if err := vad.CheckFrame(frame, s.frameSize); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &vad.InferenceError{Frame: len(frame), Err: errors.New("session closed")}
	}

	in := s.input.GetData()
	// Shift the previous frame's tail into the context slot, then the frame.
	copy(in[:s.ctxLen], in[len(in)-s.ctxLen:])
	copy(in[s.ctxLen:], frame)

	if err := s.sess.Run(); err != nil {
		return 0, &vad.InferenceError{Frame: len(frame), Err: err}
	}
	copy(s.state.GetData(), s.stateN.GetData())

	p := float64(s.output.GetData()[0])
	if math.IsNaN(p) {
		return 0, &vad.InferenceError{Frame: len(frame), Err: errors.New("model returned NaN")}
	}
	return min(max(p, 0), 1), nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	clear(s.state.GetData())
	clear(s.input.GetData())
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.destroy()
}

// destroy releases every allocated ONNX value.
func (s *session) destroy() error {
	var errs []error
	if s.sess != nil {
		errs = append(errs, s.sess.Destroy())
	}
	for _, t := range []*ort.Tensor[float32]{s.input, s.state, s.output, s.stateN} {
		if t != nil {
			errs = append(errs, t.Destroy())
		}
	}
	if s.sr != nil {
		errs = append(errs, s.sr.Destroy())
	}
	return errors.Join(errs...)
}
