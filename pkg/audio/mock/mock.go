// Package mock provides in-memory implementations of [audio.Source],
// [audio.Sink], [audio.Input] and [audio.Output] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control behaviour.
//
// Typical usage:
//
//	src := mock.NewSource([]float32{...}, []float32{...})
//	in := &mock.Input{Source: src}
//	sink := &mock.Sink{}
//	out := &mock.Output{Sink: sink}
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/relayvox/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a scripted [audio.Source]. It returns the scripted frames in order;
// once exhausted it returns io.EOF when EOFAtEnd is set, otherwise it blocks
// until Close (returning [audio.ErrClosed]) or ctx is done.
type Source struct {
	mu     sync.Mutex
	frames [][]float32
	done   chan struct{}
	closed bool

	// EOFAtEnd makes NextFrame return io.EOF after the last scripted frame.
	EOFAtEnd bool

	// CloseError is returned by Close.
	CloseError error

	// CallCountNextFrame records how many times NextFrame was called.
	CallCountNextFrame int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ audio.Source = (*Source)(nil)

// NewSource returns a Source that yields frames in order.
func NewSource(frames ...[]float32) *Source {
	return &Source{frames: frames, done: make(chan struct{})}
}

// Append adds more frames to the script.
func (s *Source) Append(frames ...[]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

// NextFrame implements [audio.Source].
func (s *Source) NextFrame(ctx context.Context) ([]float32, error) {
	s.mu.Lock()
	s.CallCountNextFrame++
	if s.closed {
		s.mu.Unlock()
		return nil, audio.ErrClosed
	}
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return f, nil
	}
	eof := s.EOFAtEnd
	s.mu.Unlock()

	if eof {
		return nil, io.EOF
	}
	select {
	case <-s.done:
		return nil, audio.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return s.CloseError
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ─── Input ────────────────────────────────────────────────────────────────────

// Input is a mock [audio.Input] that returns Source (or OpenError).
type Input struct {
	mu sync.Mutex

	// Source is returned by Open.
	Source audio.Source

	// OpenError is returned by Open.
	OpenError error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int
}

// Open implements [audio.Input].
func (i *Input) Open(_ context.Context) (audio.Source, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.CallCountOpen++
	if i.OpenError != nil {
		return nil, i.OpenError
	}
	return i.Source, nil
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// WriteCall records the arguments of a single [Sink.Write] invocation.
type WriteCall struct {
	PCM    []byte
	Format audio.Format
}

// Sink is a mock [audio.Sink] that records writes.
type Sink struct {
	mu sync.Mutex

	// WriteError is returned by Write.
	WriteError error

	// DrainError is returned by Drain.
	DrainError error

	// DrainBlock, when non-nil, makes Drain wait until it is closed, Flush is
	// called, or ctx is done.
	DrainBlock chan struct{}

	// Writes records all Write invocations.
	Writes []WriteCall

	// CallCountDrain records how many times Drain was called.
	CallCountDrain int

	// CallCountFlush records how many times Flush was called.
	CallCountFlush int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	flushed chan struct{}
}

var _ audio.Sink = (*Sink)(nil)

// Write implements [audio.Sink].
func (s *Sink) Write(_ context.Context, pcm []byte, f audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, WriteCall{PCM: append([]byte(nil), pcm...), Format: f})
	return s.WriteError
}

// Drain implements [audio.Sink].
func (s *Sink) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.CallCountDrain++
	block := s.DrainBlock
	if s.flushed == nil {
		s.flushed = make(chan struct{})
	}
	flushed := s.flushed
	err := s.DrainError
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-flushed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Flush implements [audio.Sink].
func (s *Sink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountFlush++
	if s.flushed == nil {
		s.flushed = make(chan struct{})
	}
	select {
	case <-s.flushed:
	default:
		close(s.flushed)
	}
}

// Close implements [audio.Sink].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// Bytes returns all PCM written so far, concatenated.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, w := range s.Writes {
		out = append(out, w.PCM...)
	}
	return out
}

// ─── Output ───────────────────────────────────────────────────────────────────

// Output is a mock [audio.Output] that returns Sink (or OpenError).
type Output struct {
	mu sync.Mutex

	// Sink is returned by Open.
	Sink audio.Sink

	// OpenError is returned by Open.
	OpenError error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int
}

// Open implements [audio.Output].
func (o *Output) Open(_ context.Context) (audio.Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountOpen++
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	return o.Sink, nil
}
