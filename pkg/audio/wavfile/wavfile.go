// Package wavfile replays a WAV file as a live [audio.Source], and writes
// PCM to WAV files. Decoding, encoding and resampling use
// github.com/gopxl/beep.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/MrWong99/relayvox/pkg/audio"
)

var _ audio.Input = (*File)(nil)

// resampleQuality is beep's interpolation quality (1 to 64).
const resampleQuality = 4

// Option configures a [File].
type Option func(*File)

// WithSampleRate sets the output sample rate. Default 16000.
func WithSampleRate(rate int) Option {
	return func(f *File) { f.sampleRate = rate }
}

// WithChunk sets the duration of each frame returned by NextFrame.
// Default 20ms.
func WithChunk(d time.Duration) Option {
	return func(f *File) { f.chunk = d }
}

// WithRealtime paces NextFrame to wall-clock time, as a microphone would.
// Enabled by default.
func WithRealtime(on bool) Option {
	return func(f *File) { f.realtime = on }
}

// WithTrailingSilence appends silence after the file's audio, giving a
// segmenter time to close the last utterance before io.EOF.
func WithTrailingSilence(d time.Duration) Option {
	return func(f *File) { f.trailing = d }
}

// File is an [audio.Input] that replays a WAV file on every Open.
type File struct {
	path       string
	sampleRate int
	chunk      time.Duration
	realtime   bool
	trailing   time.Duration
}

// New returns an input for the WAV file at path. The file is opened (and
// validated) on each Open.
func New(path string, opts ...Option) (*File, error) {
	if path == "" {
		return nil, errors.New("wavfile: path must not be empty")
	}
	f := &File{
		path:       path,
		sampleRate: 16000,
		chunk:      20 * time.Millisecond,
		realtime:   true,
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Open implements [audio.Input].
func (f *File) Open(_ context.Context) (audio.Source, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %q: %w", f.path, err)
	}
	stream, format, err := wav.Decode(fh)
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("wavfile: decode %q: %w", f.path, err)
	}

	var s beep.Streamer = stream
	target := beep.SampleRate(f.sampleRate)
	if format.SampleRate != target {
		s = beep.Resample(resampleQuality, format.SampleRate, target, s)
	}
	if f.trailing > 0 {
		s = beep.Seq(s, beep.Silence(target.N(f.trailing)))
	}

	frameLen := target.N(f.chunk)
	if frameLen <= 0 {
		frameLen = 320
	}
	return &source{
		streamer: s,
		closer:   stream,
		buf:      make([][2]float64, frameLen),
		realtime: f.realtime,
		chunk:    f.chunk,
		done:     make(chan struct{}),
	}, nil
}

// source pulls frames from a beep streamer, downmixing stereo to mono.
type source struct {
	streamer beep.Streamer
	closer   io.Closer
	buf      [][2]float64
	realtime bool
	chunk    time.Duration

	mu       sync.Mutex
	next     time.Time
	finished bool
	done     chan struct{}
	once     sync.Once
}

func (s *source) NextFrame(ctx context.Context) ([]float32, error) {
	select {
	case <-s.done:
		return nil, audio.ErrClosed
	default:
	}

	if s.realtime {
		s.mu.Lock()
		if s.next.IsZero() {
			s.next = time.Now()
		}
		wait := time.Until(s.next)
		s.next = s.next.Add(s.chunk)
		s.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-s.done:
				t.Stop()
				return nil, audio.ErrClosed
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil, io.EOF
	}
	n, ok := s.streamer.Stream(s.buf)
	if !ok || n == 0 {
		s.finished = true
		if err := s.streamer.Err(); err != nil {
			return nil, fmt.Errorf("wavfile: stream: %w", err)
		}
		return nil, io.EOF
	}
	out := make([]float32, n)
	for i := range n {
		out[i] = float32((s.buf[i][0] + s.buf[i][1]) / 2)
	}
	return out, nil
}

func (s *source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.closer.Close()
	})
	return err
}
