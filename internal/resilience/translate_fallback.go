package resilience

import (
	"context"

	"github.com/MrWong99/relayvox/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] with automatic failover,
// typically from a dedicated translation service to an LLM backend.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslateFallback {
	if cfg.Kind == "" {
		cfg.Kind = "translate"
	}
	return &TranslateFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional translation provider as a fallback.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Group exposes the underlying group.
func (f *TranslateFallback) Group() *FallbackGroup[translate.Provider] { return f.group }

// Translate renders text with the first healthy provider. Invalid options
// are rejected up front since every backend would refuse them.
func (f *TranslateFallback) Translate(ctx context.Context, text string, opts translate.Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	return ExecuteWithResult(ctx, f.group, func(p translate.Provider) (string, error) {
		return p.Translate(ctx, text, opts)
	})
}
