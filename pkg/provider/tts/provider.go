// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Azure Speech, ElevenLabs,
// a local Coqui server) and streams raw 16-bit little-endian PCM as it
// becomes available, so playback can start before synthesis has finished.
// [Speaker] binds a provider to a playback device and a voice.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/relayvox/pkg/audio"
)

// ErrNoAudio is returned when synthesis finished without producing samples.
var ErrNoAudio = errors.New("tts: synthesis produced no audio")

// VoiceProfile describes a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier, e.g. "fr-FR-DeniseNeural".
	ID string

	// Name is the human-readable voice name.
	Name string

	// Locale is the BCP-47 locale the voice speaks, e.g. "fr-FR".
	Locale string

	// Gender is "Female", "Male" or empty when unknown.
	Gender string

	// Provider identifies which backend the voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5 to 2.0, 0 or 1.0 = default).
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes.
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with voice and returns a channel of PCM chunks
	// in OutputFormat. The channel is closed when synthesis completes, fails
	// or ctx is cancelled; the caller must drain it. A non-nil error means
	// synthesis could not be started.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the voices the backend offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// OutputFormat is the format of the chunks emitted by Synthesize.
	OutputFormat() audio.Format
}
