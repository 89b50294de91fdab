// Package llm adapts any llm.Provider into a translation backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/relayvox/pkg/provider/llm"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
)

const systemPrompt = "You are a translation engine for live speech. Translate the user's message %sinto %s. " +
	"Reply with the translation only, without quotes, notes or explanations. " +
	"Keep names, numbers and tone unchanged."

var _ translate.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLanguageNames sets the function that turns a language code into a
// human-readable name for the prompt. The default uses the code itself.
func WithLanguageNames(fn func(code string) string) Option {
	return func(p *Provider) { p.names = fn }
}

// WithTemperature sets the sampling temperature. Zero keeps the backend
// default.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = t }
}

// WithMaxTokens caps the translation length.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// Provider translates by prompting an LLM.
type Provider struct {
	llm         llm.Provider
	names       func(string) string
	temperature float64
	maxTokens   int
}

// New wraps backend as a translate.Provider.
func New(backend llm.Provider, opts ...Option) (*Provider, error) {
	if backend == nil {
		return nil, errors.New("llm translate: backend must not be nil")
	}
	p := &Provider{
		llm:       backend,
		names:     func(code string) string { return code },
		maxTokens: 1024,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Prompt returns the system prompt used for opts.
func (p *Provider) Prompt(opts translate.Options) string {
	from := ""
	if opts.From != "" {
		from = "from " + p.names(opts.From) + " "
	}
	return fmt.Sprintf(systemPrompt, from, p.names(opts.To))
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text string, opts translate.Options) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", translate.ErrEmptyText
	}
	if err := opts.Validate(); err != nil {
		return "", err
	}
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.Prompt(opts),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  p.temperature,
		MaxTokens:    p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm translate: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.Trim(strings.TrimSpace(resp.Content), "\""), nil
}
