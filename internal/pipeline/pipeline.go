// Package pipeline runs the speech translation loop.
//
// A [Controller] owns at most one background worker. The worker pulls speech
// segments from a [segment.Engine] and relays each one through a
// [Recognizer], a [Translator] and a [Synthesizer] in strict order. The
// control surface (Start, Stop, HardStop, RestartWith) never returns an
// error: outcomes are reported as short status strings, and everything else
// lands in the ring log exposed by [Controller.Snapshot].
//
// Cancellation is checked at three points: the top of the loop, before
// transcription and before synthesis. A collaborator call that is already in
// flight runs to completion on Stop; HardStop additionally asks the
// synthesizer to cancel its playback.
package pipeline

import (
	"context"
	"time"

	"github.com/MrWong99/relayvox/internal/catalog"
)

// Recognizer turns one speech segment into text. An empty result means
// nothing was recognised.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// Translator translates text into the target language code.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Synthesizer speaks text aloud. Speak blocks until playback finished. Cancel
// interrupts an in-flight Speak and may be called from any goroutine.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	Cancel() error
}

// Catalog resolves languages and voices. *catalog.Catalog implements it.
type Catalog interface {
	ResolveLanguage(code string) (catalog.Language, bool)
	ResolveVoice(name string) (catalog.Voice, bool)
}

// MinSilenceSeconds is the lower bound applied to RunConfig.SilenceSeconds.
const MinSilenceSeconds = 0.5

// RunConfig selects what one run translates.
//
// Callers pass language codes and an optional voice to [Controller.Start].
// The controller resolves them against the catalog and hands the
// [Builder] a resolved copy: Source is then the recognition locale, Target
// the translator code and Voice a voice that belongs to the target.
type RunConfig struct {
	Source         string  `json:"source"`
	Target         string  `json:"target"`
	Voice          string  `json:"voice"`
	SilenceSeconds float64 `json:"silence_seconds"`
}

// Silence returns SilenceSeconds as a duration.
func (c RunConfig) Silence() time.Duration {
	return time.Duration(c.SilenceSeconds * float64(time.Second))
}

// State is the controller state.
type State int

const (
	StateStopped State = iota
	StateInitializing
	StateListening
	StateTranscribing
	StateTranslating
	StateSpeaking
	StateStopping
	StateError
)

var stateText = [...]string{
	StateStopped:      "Stopped",
	StateInitializing: "Initializing...",
	StateListening:    "Listening...",
	StateTranscribing: "Transcribing...",
	StateTranslating:  "Translating...",
	StateSpeaking:     "Speaking...",
	StateStopping:     "Stopping...",
	StateError:        "Error",
}

// String returns the status text shown to users.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateText) {
		return "Unknown"
	}
	return stateText[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LogEntry is one line of the controller log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Snapshot is a consistent view of the controller for polling callers.
type Snapshot struct {
	Log           []LogEntry `json:"log"`
	LogText       string     `json:"log_text"`
	Transcription string     `json:"transcription"`
	Translation   string     `json:"translation"`
	State         State      `json:"state"`
	Status        string     `json:"status"`
	RunID         string     `json:"run_id"`
	Config        RunConfig  `json:"config"`
}
