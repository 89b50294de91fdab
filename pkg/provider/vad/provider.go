// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine wraps a frame-level speech detector (Silero, an energy
// heuristic, or a custom model) and surfaces it as a per-stream session that
// maps one fixed-size frame of mono float32 samples to a speech probability
// in [0, 1]. Deciding what counts as speech is left to the caller; sessions
// only score frames.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import "fmt"

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to Infer. Silero supports 8000 and 16000.
	SampleRate int

	// FrameSize is the number of samples per frame. Infer returns an
	// [*InferenceError] for frames of any other length. Silero v5 expects 512
	// samples at 16 kHz.
	FrameSize int
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("vad: frame size must be positive, got %d", c.FrameSize)
	}
	return nil
}

// InferenceError reports that a single frame could not be scored. Callers
// treat it as a skipped frame rather than a fatal failure.
type InferenceError struct {
	// Frame is the length of the rejected frame.
	Frame int
	// Err is the underlying cause.
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("vad: inference failed on %d-sample frame: %v", e.Frame, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// SessionHandle is an active VAD session for a single audio stream. Each
// session keeps its own model state; Reset clears it without closing the
// session.
type SessionHandle interface {
	// Infer scores one frame and returns a speech probability in [0, 1].
	// Malformed input (wrong length, non-finite samples) yields an
	// [*InferenceError].
	Infer(frame []float32) (float64, error)

	// Reset clears recurrent model state.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new session with the given configuration.
	NewSession(cfg Config) (SessionHandle, error)
}

// CheckFrame returns an [*InferenceError] when frame does not have exactly
// size samples. Engines use it to validate Infer input.
func CheckFrame(frame []float32, size int) error {
	if len(frame) != size {
		return &InferenceError{Frame: len(frame), Err: fmt.Errorf("expected %d samples", size)}
	}
	return nil
}
