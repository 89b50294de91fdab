// Package mock provides a test double for translate.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/relayvox/pkg/provider/translate"
)

// TranslateCall records a single invocation of Translate.
type TranslateCall struct {
	Text string
	Opts translate.Options
}

// Provider is a mock implementation of translate.Provider.
//
// Translate resolves its result in this order: Err if set; Func if set;
// otherwise Result. Block, if non-nil, is waited on (or ctx) before anything
// else happens.
type Provider struct {
	mu sync.Mutex

	Func   func(text string, opts translate.Options) (string, error)
	Result string
	Err    error
	Block  chan struct{}

	TranslateCalls []TranslateCall
}

// Translate records the call and returns the configured result.
func (p *Provider) Translate(ctx context.Context, text string, opts translate.Options) (string, error) {
	p.mu.Lock()
	p.TranslateCalls = append(p.TranslateCalls, TranslateCall{Text: text, Opts: opts})
	block, fn, res, err := p.Block, p.Func, p.Result, p.Err
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(text, opts)
	}
	return res, nil
}

// CallCount returns the number of Translate calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranslateCalls)
}

var _ translate.Provider = (*Provider)(nil)
