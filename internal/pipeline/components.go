package pipeline

import (
	"context"
	"errors"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// Components are the per-run collaborators.
type Components struct {
	// Source delivers mono float32 audio at SampleRate.
	Source audio.Source

	// VAD scores segmentation frames.
	VAD vad.SessionHandle

	Recognizer  Recognizer
	Translator  Translator
	Synthesizer Synthesizer

	// SampleRate is the rate of Source. Zero means 16000.
	SampleRate int

	// Closers run in reverse order after Source and VAD are closed.
	Closers []func() error
}

// Close releases everything the run holds. It is safe to call on a
// partially built value.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Source != nil {
		errs = append(errs, c.Source.Close())
	}
	if c.VAD != nil {
		errs = append(errs, c.VAD.Close())
	}
	for i := len(c.Closers) - 1; i >= 0; i-- {
		errs = append(errs, c.Closers[i]())
	}
	return errors.Join(errs...)
}

func (c *Components) validate() error {
	switch {
	case c == nil:
		return errors.New("builder returned no components")
	case c.Source == nil:
		return errors.New("no audio source")
	case c.VAD == nil:
		return errors.New("no voice activity model")
	case c.Recognizer == nil:
		return errors.New("no recognizer")
	case c.Translator == nil:
		return errors.New("no translator")
	case c.Synthesizer == nil:
		return errors.New("no synthesizer")
	}
	return nil
}

// Builder constructs the collaborators of one run from a resolved
// [RunConfig].
type Builder interface {
	Build(ctx context.Context, cfg RunConfig) (*Components, error)
}

// BuilderFunc adapts a function to [Builder].
type BuilderFunc func(ctx context.Context, cfg RunConfig) (*Components, error)

// Build implements [Builder].
func (f BuilderFunc) Build(ctx context.Context, cfg RunConfig) (*Components, error) {
	return f(ctx, cfg)
}
