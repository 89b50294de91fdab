package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/relayvox/internal/segment"
	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// STTRecognizer adapts an [stt.Provider] bound to one locale.
type STTRecognizer struct {
	Provider stt.Provider
	Locale   string
}

// Recognize implements [Recognizer].
func (r *STTRecognizer) Recognize(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	t, err := r.Provider.Transcribe(ctx, samples, stt.Options{SampleRate: sampleRate, Language: r.Locale})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(t.Text), nil
}

// TextTranslator adapts a [translate.Provider]. From is optional; empty lets
// the backend detect the source language.
type TextTranslator struct {
	Provider translate.Provider
	From     string
}

// Translate implements [Translator].
func (t *TextTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	out, err := t.Provider.Translate(ctx, text, translate.Options{From: t.From, To: target})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

var (
	_ Recognizer  = (*STTRecognizer)(nil)
	_ Translator  = (*TextTranslator)(nil)
	_ Synthesizer = (*tts.Speaker)(nil)
)

// ProviderBuilder builds run components from long-lived providers and
// devices. Every field except Logger is required.
type ProviderBuilder struct {
	Input     audio.Input
	VAD       vad.Engine
	STT       stt.Provider
	Translate translate.Provider
	TTS       tts.Provider
	Output    audio.Output

	// SampleRate and FrameSize configure the VAD session. Zero means the
	// segmentation defaults (16000 and 512).
	SampleRate int
	FrameSize  int

	// VoiceSpeed is passed to the synthesis voice. Zero means 1.
	VoiceSpeed float64

	Logger *slog.Logger
}

var _ Builder = (*ProviderBuilder)(nil)

// Build implements [Builder]. On error everything opened so far is closed.
func (b *ProviderBuilder) Build(ctx context.Context, cfg RunConfig) (_ *Components, err error) {
	if b.Input == nil || b.VAD == nil || b.STT == nil || b.Translate == nil || b.TTS == nil || b.Output == nil {
		return nil, errors.New("pipeline: provider builder is missing a provider")
	}
	rate := b.SampleRate
	if rate <= 0 {
		rate = segment.DefaultSampleRate
	}
	frame := b.FrameSize
	if frame <= 0 {
		frame = segment.DefaultFrameSize
	}
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Components{SampleRate: rate}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.VAD, err = b.VAD.NewSession(vad.Config{SampleRate: rate, FrameSize: frame}); err != nil {
		return nil, fmt.Errorf("pipeline: vad session: %w", err)
	}

	speaker, err := tts.NewSpeaker(b.TTS, b.Output, tts.VoiceProfile{
		ID:          cfg.Voice,
		Locale:      localeOf(cfg.Voice),
		SpeedFactor: b.VoiceSpeed,
	}, tts.WithSpeakerLogger(log))
	if err != nil {
		return nil, fmt.Errorf("pipeline: speaker: %w", err)
	}
	c.Closers = append(c.Closers, speaker.Close)
	c.Synthesizer = speaker

	c.Recognizer = &STTRecognizer{Provider: b.STT, Locale: cfg.Source}
	c.Translator = &TextTranslator{Provider: b.Translate}

	// The source starts capturing as soon as it is open, so it goes last.
	if c.Source, err = b.Input.Open(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: open audio input: %w", err)
	}
	return c, nil
}

// localeOf returns the "ll-CC" prefix of a voice short name such as
// "fr-FR-DeniseNeural".
func localeOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[0] + "-" + parts[1]
}
