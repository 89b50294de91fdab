// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to script transcripts and inspect the audio and options each
// call received.
//
// Example:
//
//	p := &mock.Provider{Results: []stt.Transcript{{Text: "hello"}}}
//	tr, _ := p.Transcribe(ctx, samples, stt.Options{Language: "en-US"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/relayvox/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32
	// Opts is the Options passed to Transcribe.
	Opts stt.Options
}

// Provider is a mock implementation of stt.Provider.
//
// Transcribe returns, in order: Err if set; the next entry of Results;
// otherwise Transcript.
type Provider struct {
	mu sync.Mutex

	// Results holds per-call transcripts consumed in order.
	Results []stt.Transcript

	// Transcript is returned once Results is exhausted.
	Transcript stt.Transcript

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Block, if non-nil, makes Transcribe wait until it is closed or ctx is
	// done.
	Block chan struct{}

	// Calls records every call to Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, opts stt.Options) (stt.Transcript, error) {
	p.mu.Lock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.Calls = append(p.Calls, TranscribeCall{Samples: cp, Opts: opts})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	if len(p.Results) > 0 {
		tr := p.Results[0]
		p.Results = p.Results[1:]
		return tr, nil
	}
	return p.Transcript, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
