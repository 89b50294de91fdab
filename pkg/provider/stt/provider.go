// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider turns one complete utterance of mono float32 audio into
// text. Utterances are cut upstream by the segmentation engine, so providers
// never see partial speech: batch backends (Azure short-audio REST, a
// whisper.cpp server, the in-process whisper bindings) receive the whole
// segment in one request, and streaming backends (Deepgram) replay it over a
// short-lived stream and collect the final results.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyAudio is returned when Transcribe is called without samples.
var ErrEmptyAudio = errors.New("stt: no audio samples")

// Options describes the audio and the recognition language of one request.
type Options struct {
	// SampleRate is the rate of the samples in Hz. Zero means the provider's
	// default (16000 for all bundled providers).
	SampleRate int

	// Language is the BCP-47 locale to recognise (e.g., "en-US", "de-DE").
	// Providers that only accept a bare language code use the part before
	// the first '-'. Empty means the provider's configured default.
	Language string
}

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the recognised speech. Empty when nothing was recognised.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report one.
	Confidence float64

	// Language is the locale the provider recognised, when it reports one.
	Language string

	// Duration is the length of the recognised speech, when reported.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in samples. A request that completes
	// but recognises nothing returns a zero Transcript and a nil error.
	Transcribe(ctx context.Context, samples []float32, opts Options) (Transcript, error)
}

// BaseLanguage returns the language part of a locale ("en-US" -> "en").
func BaseLanguage(locale string) string {
	for i := 0; i < len(locale); i++ {
		if locale[i] == '-' || locale[i] == '_' {
			return locale[:i]
		}
	}
	return locale
}
