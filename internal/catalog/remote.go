package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	translateazure "github.com/MrWong99/relayvox/pkg/provider/translate/azure"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
)

// LanguageSource lists translator languages. *translateazure.Provider
// implements it.
type LanguageSource interface {
	Languages(ctx context.Context) (map[string]translateazure.LanguageInfo, error)
}

// VoiceSource lists synthesis voices. Every [tts.Provider] implements it.
type VoiceSource interface {
	ListVoices(ctx context.Context) ([]tts.VoiceProfile, error)
}

// RemoteFetcher fetches languages and voices concurrently.
type RemoteFetcher struct {
	Languages LanguageSource
	Voices    VoiceSource
}

var _ Fetcher = (*RemoteFetcher)(nil)

// Fetch implements [Fetcher].
func (f *RemoteFetcher) Fetch(ctx context.Context) (Data, error) {
	if f.Languages == nil || f.Voices == nil {
		return Data{}, fmt.Errorf("catalog: remote fetcher needs both a language and a voice source")
	}
	var (
		d  Data
		mu sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		langs, err := f.Languages.Languages(gctx)
		if err != nil {
			return fmt.Errorf("catalog: fetch languages: %w", err)
		}
		out := make(map[string]LanguageInfo, len(langs))
		for code, l := range langs {
			out[code] = LanguageInfo{Name: l.Name, NativeName: l.NativeName}
		}
		mu.Lock()
		d.Languages = out
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		voices, err := f.Voices.ListVoices(gctx)
		if err != nil {
			return fmt.Errorf("catalog: fetch voices: %w", err)
		}
		out := make(map[string][]VoiceInfo)
		for _, v := range voices {
			if v.Locale == "" || v.ID == "" {
				continue
			}
			out[v.Locale] = append(out[v.Locale], VoiceInfo{
				ShortName: v.ID,
				Gender:    v.Gender,
				Name:      v.Name,
			})
		}
		mu.Lock()
		d.Voices = out
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Populate fetches fresh data and writes it into dir for later use with
// [WithFiles].
func Populate(ctx context.Context, f Fetcher, dir string) (Data, error) {
	d, err := f.Fetch(ctx)
	if err != nil {
		return Data{}, err
	}
	if err := WriteFiles(dir, d); err != nil {
		return Data{}, err
	}
	var voices int
	for _, vs := range d.Voices {
		voices += len(vs)
	}
	slog.Info("catalog: populated", "dir", dir, "languages", len(d.Languages), "voices", voices)
	return d, nil
}
