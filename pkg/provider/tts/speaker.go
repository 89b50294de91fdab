package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/audio/wavfile"
)

// SpeakerOption configures a [Speaker].
type SpeakerOption func(*Speaker)

// WithSpeakerLogger sets the logger. Default slog.Default().
func WithSpeakerLogger(l *slog.Logger) SpeakerOption {
	return func(s *Speaker) { s.log = l }
}

// Speaker plays synthesized speech on an audio output with a fixed voice.
// The sink is opened on first use and reused until Close.
//
// Speak is not meant to be called concurrently with itself; Cancel may be
// called from any goroutine.
type Speaker struct {
	provider Provider
	out      audio.Output
	voice    VoiceProfile
	log      *slog.Logger

	mu     sync.Mutex
	sink   audio.Sink
	cancel context.CancelFunc
	closed bool
}

// NewSpeaker binds provider, out and voice.
func NewSpeaker(provider Provider, out audio.Output, voice VoiceProfile, opts ...SpeakerOption) (*Speaker, error) {
	if provider == nil {
		return nil, errors.New("tts: provider must not be nil")
	}
	if out == nil {
		return nil, errors.New("tts: output must not be nil")
	}
	s := &Speaker{provider: provider, out: out, voice: voice}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Voice returns the voice the speaker was bound to.
func (s *Speaker) Voice() VoiceProfile { return s.voice }

// Speak synthesizes text and blocks until it has been played. Blank text is
// a no-op. After [Speaker.Cancel] it returns context.Canceled.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sink, err := s.openSink(ctx)
	if err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	chunks, err := s.provider.Synthesize(sctx, text, s.voice)
	if err != nil {
		return fmt.Errorf("tts: synthesize: %w", err)
	}

	f := s.provider.OutputFormat()
	written := 0
	for pcm := range chunks {
		if err := sink.Write(sctx, pcm, f); err != nil {
			cancel()
			for range chunks {
			}
			return fmt.Errorf("tts: write: %w", err)
		}
		written += len(pcm)
	}
	if err := sctx.Err(); err != nil {
		return err
	}
	if written == 0 {
		return ErrNoAudio
	}
	if err := sink.Drain(sctx); err != nil {
		return fmt.Errorf("tts: drain: %w", err)
	}
	return sctx.Err()
}

// Cancel aborts an in-flight Speak and drops queued audio. It is safe to call
// when nothing is playing.
func (s *Speaker) Cancel() error {
	s.mu.Lock()
	cancel, sink := s.cancel, s.sink
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if sink != nil {
		sink.Flush()
	}
	return nil
}

// SaveToFile synthesizes text and writes it to path as a WAV file instead of
// playing it.
func (s *Speaker) SaveToFile(ctx context.Context, text, path string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("tts: text must not be empty")
	}
	chunks, err := s.provider.Synthesize(ctx, text, s.voice)
	if err != nil {
		return fmt.Errorf("tts: synthesize: %w", err)
	}
	var pcm []byte
	for c := range chunks {
		pcm = append(pcm, c...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pcm) == 0 {
		return ErrNoAudio
	}
	if err := wavfile.WriteFile(path, pcm, s.provider.OutputFormat()); err != nil {
		return fmt.Errorf("tts: save %s: %w", path, err)
	}
	s.log.Info("tts: saved synthesis", "path", path, "bytes", len(pcm), "voice", s.voice.ID)
	return nil
}

// Close releases the sink. The speaker must not be used afterwards.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.sink == nil {
		return nil
	}
	err := s.sink.Close()
	s.sink = nil
	return err
}

func (s *Speaker) openSink(ctx context.Context) (audio.Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, audio.ErrClosed
	}
	if s.sink != nil {
		return s.sink, nil
	}
	sink, err := s.out.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("tts: open output: %w", err)
	}
	s.sink = sink
	return sink, nil
}
