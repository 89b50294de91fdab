package resilience

import (
	"context"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// The primary's output format is the group's format. Chunks from a fallback
// with a different format are converted to it, so callers can keep a sink
// opened for [TTSFallback.OutputFormat].
type TTSFallback struct {
	group  *FallbackGroup[tts.Provider]
	format audio.Format
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{
		group:  NewFallbackGroup(primary, primaryName, cfg),
		format: primary.OutputFormat(),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Group exposes the underlying group.
func (f *TTSFallback) Group() *FallbackGroup[tts.Provider] { return f.group }

// Synthesize starts synthesis on the first healthy provider. Only starting
// the stream is covered by failover; a stream that breaks midway simply ends.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (<-chan []byte, error) {
		ch, err := p.Synthesize(ctx, text, voice)
		if err != nil {
			return nil, err
		}
		if src := p.OutputFormat(); src != f.format {
			return convert(ch, src, f.format), nil
		}
		return ch, nil
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// OutputFormat is the primary provider's format.
func (f *TTSFallback) OutputFormat() audio.Format { return f.format }

// convert rewrites a PCM16 stream from src to mono at dst's rate. Only mono
// targets are produced, matching every bundled provider.
func convert(in <-chan []byte, src, dst audio.Format) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for chunk := range in {
			out <- audio.ToMono16(chunk, src, dst.SampleRate)
		}
	}()
	return out
}
