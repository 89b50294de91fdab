// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Chunks: [][]byte{make([]byte, 320)}}
//	ch, _ := p.Synthesize(ctx, "Bonjour", voice)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Chunks are emitted by every Synthesize call, in order.
	Chunks [][]byte

	// Err, if non-nil, is returned by Synthesize instead of a channel.
	Err error

	// Block, if non-nil, delays emitting chunks until it is closed. A
	// cancelled context closes the channel without emitting anything.
	Block chan struct{}

	// Format is returned by OutputFormat. Zero means audio.Mono16k.
	Format audio.Format

	// Voices is returned by ListVoices together with ListErr.
	Voices  []tts.VoiceProfile
	ListErr error

	SynthesizeCalls []SynthesizeCall
	ListVoicesCalls int
}

// Synthesize records the call and streams Chunks.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.Err != nil {
		err := p.Err
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([][]byte, len(p.Chunks))
	copy(chunks, p.Chunks)
	block := p.Block
	p.mu.Unlock()

	ch := make(chan []byte)
	go func() {
		defer close(ch)
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices records the call and returns Voices, ListErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCalls++
	return p.Voices, p.ListErr
}

// OutputFormat returns Format, defaulting to audio.Mono16k.
func (p *Provider) OutputFormat() audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Format == (audio.Format{}) {
		return audio.Mono16k
	}
	return p.Format
}

// CallCount returns the number of Synthesize calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

var _ tts.Provider = (*Provider)(nil)
