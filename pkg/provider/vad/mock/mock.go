// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script probabilities and inspect the frames that were
// submitted for inference.
//
// Example:
//
//	sess := &mock.Session{Script: []float64{0.9, 0.9, 0.1}}
//	eng := &mock.Engine{Session: sess}
//	handle, _ := eng.NewSession(cfg)
package mock

import (
	"sync"

	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// NewSessionCall records a single invocation of Engine.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession in order.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle.
//
// Infer resolves its result in this order: Func if set; otherwise the next
// entry of Script; otherwise Probability. Err, if non-nil, is returned
// instead of any probability.
type Session struct {
	mu sync.Mutex

	// Func, if set, computes each result from the frame.
	Func func(frame []float32) (float64, error)

	// Script holds per-call probabilities consumed in order.
	Script []float64

	// Probability is returned once Script is exhausted.
	Probability float64

	// Err, if non-nil, is returned by every Infer call.
	Err error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// InferCalls counts calls to Infer.
	InferCalls int

	// FrameSizes records the length of every frame passed to Infer.
	FrameSizes []int

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Infer records the call and returns the scripted result.
func (s *Session) Infer(frame []float32) (float64, error) {
	s.mu.Lock()
	s.InferCalls++
	s.FrameSizes = append(s.FrameSizes, len(frame))
	fn := s.Func
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return 0, err
	}
	if fn == nil {
		defer s.mu.Unlock()
		if len(s.Script) > 0 {
			p := s.Script[0]
			s.Script = s.Script[1:]
			return p, nil
		}
		return s.Probability, nil
	}
	s.mu.Unlock()
	return fn(frame)
}

// Reset records the call by incrementing ResetCallCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)
