// Package speaker plays PCM through the system's default output device using
// github.com/ebitengine/oto/v3.
//
// oto allows a single context per process, so a [Device] creates it lazily
// at a fixed sample rate and converts everything written to that rate.
package speaker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/relayvox/pkg/audio"
)

var _ audio.Output = (*Device)(nil)

// drainPoll is how often Drain checks whether playback has finished.
const drainPoll = 10 * time.Millisecond

// Option configures a [Device].
type Option func(*Device)

// WithSampleRate sets the playback sample rate. Default 16000.
func WithSampleRate(rate int) Option {
	return func(d *Device) { d.sampleRate = rate }
}

// WithBufferSize sets oto's hardware buffer duration. Default 100ms.
func WithBufferSize(dur time.Duration) Option {
	return func(d *Device) { d.bufferSize = dur }
}

// Device is the process-wide speaker [audio.Output].
type Device struct {
	sampleRate int
	bufferSize time.Duration

	once    sync.Once
	otoCtx  *oto.Context
	initErr error
}

// New creates a speaker output. The oto context is created on the first Open.
func New(opts ...Option) *Device {
	d := &Device{sampleRate: 16000, bufferSize: 100 * time.Millisecond}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) init() error {
	d.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   d.sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   d.bufferSize,
		})
		if err != nil {
			d.initErr = fmt.Errorf("speaker: init output context: %w", err)
			return
		}
		<-ready
		d.otoCtx = ctx
	})
	return d.initErr
}

// Open implements [audio.Output].
func (d *Device) Open(_ context.Context) (audio.Sink, error) {
	if err := d.init(); err != nil {
		return nil, err
	}
	s := &sink{rate: d.sampleRate}
	s.player = d.otoCtx.NewPlayer(s)
	return s, nil
}

// sink feeds an oto player from an in-memory buffer. The player pulls through
// Read and pauses itself at io.EOF once the buffer runs dry; Write resumes it.
type sink struct {
	rate   int
	player *oto.Player

	mu      sync.Mutex
	buf     []byte
	closed  bool
	flushGn uint64
}

// Read implements io.Reader for the oto player.
func (s *sink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *sink) Write(_ context.Context, pcm []byte, f audio.Format) error {
	data := audio.ToMono16(pcm, f, s.rate)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return audio.ErrClosed
	}
	s.buf = append(s.buf, data...)
	s.mu.Unlock()

	if !s.player.IsPlaying() {
		s.player.Play()
	}
	return nil
}

// Drain waits until the buffer is consumed and oto has played its own
// buffered audio. A Flush during the wait ends it early.
func (s *sink) Drain(ctx context.Context) error {
	s.mu.Lock()
	gen := s.flushGn
	s.mu.Unlock()

	t := time.NewTicker(drainPoll)
	defer t.Stop()
	for {
		s.mu.Lock()
		pending := len(s.buf)
		flushed := s.flushGn != gen
		closed := s.closed
		s.mu.Unlock()

		if flushed || closed {
			return nil
		}
		if pending == 0 && !s.player.IsPlaying() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Flush drops all queued audio, including what oto already buffered.
func (s *sink) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.flushGn++
	s.mu.Unlock()

	s.player.Pause()
	s.player.Reset()
}

func (s *sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	s.mu.Unlock()

	if err := s.player.Close(); err != nil {
		return fmt.Errorf("speaker: close player: %w", err)
	}
	return nil
}
