// Package wavdir is an [audio.Output] that writes every utterance to its own
// numbered WAV file instead of playing it.
package wavdir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/audio/wavfile"
)

var _ audio.Output = (*Dir)(nil)

// Dir writes utterances into a directory as <prefix>-NNNN.wav.
type Dir struct {
	dir    string
	prefix string

	mu  sync.Mutex
	seq int
}

// New returns an output writing into dir, creating it if needed.
func New(dir, prefix string) (*Dir, error) {
	if dir == "" {
		return nil, errors.New("wavdir: dir must not be empty")
	}
	if prefix == "" {
		prefix = "utterance"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavdir: create %q: %w", dir, err)
	}
	return &Dir{dir: dir, prefix: prefix}, nil
}

func (d *Dir) nextPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return filepath.Join(d.dir, fmt.Sprintf("%s-%04d.wav", d.prefix, d.seq))
}

// Open implements [audio.Output].
func (d *Dir) Open(_ context.Context) (audio.Sink, error) {
	return &sink{dir: d}, nil
}

// sink accumulates one utterance and writes it out on Drain.
type sink struct {
	dir *Dir

	mu     sync.Mutex
	pcm    []byte
	format audio.Format
	closed bool
}

func (s *sink) Write(_ context.Context, pcm []byte, f audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.ErrClosed
	}
	if len(s.pcm) > 0 && f != s.format {
		pcm = audio.ToMono16(pcm, f, s.format.SampleRate)
	} else {
		s.format = f
	}
	s.pcm = append(s.pcm, pcm...)
	return nil
}

// Drain writes the accumulated utterance to the next file.
func (s *sink) Drain(_ context.Context) error {
	s.mu.Lock()
	pcm, f := s.pcm, s.format
	s.pcm = nil
	s.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}
	path := s.dir.nextPath()
	if err := wavfile.WriteFile(path, pcm, f); err != nil {
		return err
	}
	slog.Debug("wavdir: utterance written", "path", path, "bytes", len(pcm))
	return nil
}

func (s *sink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm = nil
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pcm = nil
	return nil
}
