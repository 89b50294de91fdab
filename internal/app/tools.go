package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
)

// ErrNoLiveSources is returned by [App.Populate] when no language or voice
// source is configured.
var ErrNoLiveSources = errors.New("app: no live catalog sources configured")

// Say synthesizes text with the configured TTS chain and writes it to path
// as a WAV file. The voice is pipeline.voice, or the default voice of
// pipeline.target when that is empty.
func (a *App) Say(ctx context.Context, text, path string) error {
	name := a.cfg.Pipeline.Voice
	if name == "" {
		def, ok := a.catalog.DefaultVoice(a.cfg.Pipeline.Target)
		if !ok {
			return fmt.Errorf("app: no voice for target %q", a.cfg.Pipeline.Target)
		}
		name = def
	}
	voice := tts.VoiceProfile{ID: name}
	if v, ok := a.catalog.ResolveVoice(name); ok {
		voice.Locale = v.Locale
		voice.Gender = v.Gender
		voice.Name = v.Name
	}

	speaker, err := tts.NewSpeaker(a.tts, a.providers.Playback, voice, tts.WithSpeakerLogger(a.logger))
	if err != nil {
		return fmt.Errorf("app: speaker: %w", err)
	}
	defer speaker.Close()
	return speaker.SaveToFile(ctx, text, path)
}

// Populate fetches languages and voices from the live sources and writes
// the catalog JSON files into dir.
func (a *App) Populate(ctx context.Context, dir string) (catalog.Data, error) {
	f := a.fetcher()
	if f == nil {
		return catalog.Data{}, ErrNoLiveSources
	}
	d, err := catalog.Populate(ctx, f, dir)
	if err != nil {
		return catalog.Data{}, fmt.Errorf("app: populate %s: %w", dir, err)
	}
	return d, nil
}
